package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
)

type Type string

const (
	TypeAdd    Type = "add"
	TypeDelete Type = "delete"
	TypeDone   Type = "done"
	TypeGoto   Type = "goto"
	TypeReset  Type = "reset"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Target names a task of the day by its position. "first" and "last" name
// the day boundaries.
type Target struct {
	Position int
}

func (t Target) String() string {
	switch t.Position {
	case model.FirstPosition:
		return "first"
	case model.LastPosition:
		return "last"
	default:
		return strconv.Itoa(t.Position)
	}
}

type AddArgs struct {
	After   Target
	Minutes int
	Name    string
}

type DeleteArgs struct {
	Target Target
}

type DoneArgs struct {
	Target Target
}

type GotoArgs struct {
	Date model.Date
}

type Command struct {
	Type   Type
	Raw    string
	Add    *AddArgs
	Delete *DeleteArgs
	Done   *DoneArgs
	Goto   *GotoArgs
}

// Parse reads one palette line. today resolves the "today" keyword of goto.
func Parse(input string, today model.Date) (Command, error) {
	raw := strings.TrimSpace(input)
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeDelete, "rm":
		target, err := parseSingleTarget("delete", args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeDelete, Raw: input, Delete: &DeleteArgs{Target: target}}, nil
	case TypeDone:
		target, err := parseSingleTarget("done", args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeDone, Raw: input, Done: &DoneArgs{Target: target}}, nil
	case TypeGoto:
		return parseGoto(input, args, today)
	case TypeReset:
		if len(args) != 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "reset takes no arguments"}
		}
		return Command{Type: TypeReset, Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	if len(args) < 3 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: add <after-pos> <minutes> <name>"}
	}
	after, err := ParseTarget(args[0])
	if err != nil {
		return Command{}, err
	}
	if after.Position == model.LastPosition {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "nothing can follow the end of the day"}
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil || minutes <= 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("minutes must be a positive number, got %q", args[1])}
	}
	name := strings.TrimSpace(strings.Join(args[2:], " "))
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{After: after, Minutes: minutes, Name: name}}, nil
}

func parseSingleTarget(verb string, args []string) (Target, error) {
	if len(args) != 1 {
		return Target{}, &CommandError{Code: ErrCodeInvalidArgument, Message: verb + " requires one position"}
	}
	return ParseTarget(args[0])
}

// ParseTarget accepts a non-negative position, "first", or "last".
func ParseTarget(raw string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "first":
		return Target{Position: model.FirstPosition}, nil
	case "last":
		return Target{Position: model.LastPosition}, nil
	}
	pos, err := strconv.Atoi(raw)
	if err != nil || pos < 0 {
		return Target{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid position %q", raw)}
	}
	return Target{Position: pos}, nil
}

func parseGoto(raw string, args []string, today model.Date) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: goto <YYYY-MM-DD|today|tomorrow|yesterday>"}
	}
	var date model.Date
	switch strings.ToLower(args[0]) {
	case "today":
		date = today
	case "tomorrow":
		date = today.AddDays(1)
	case "yesterday":
		date = today.AddDays(-1)
	default:
		d, err := model.ParseDate(args[0])
		if err != nil {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid date %q, want %s", args[0], time.DateOnly)}
		}
		date = d
	}
	return Command{Type: TypeGoto, Raw: raw, Goto: &GotoArgs{Date: date}}, nil
}
