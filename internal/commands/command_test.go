package commands

import (
	"errors"
	"testing"

	"github.com/sandeepkv93/dayplan/internal/model"
)

var today = model.NewDate(2024, 1, 15)

func TestParseSupportedCommands(t *testing.T) {
	cases := []struct {
		in       string
		typeWant Type
	}{
		{"/add 2 30 stand-up call", TypeAdd},
		{"add first 15 coffee", TypeAdd},
		{"delete 3", TypeDelete},
		{"rm 3", TypeDelete},
		{"done last", TypeDone},
		{"goto 2024-02-01", TypeGoto},
		{"/reset", TypeReset},
	}

	for _, tc := range cases {
		cmd, err := Parse(tc.in, today)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.in, err)
		}
		if cmd.Type != tc.typeWant {
			t.Fatalf("parse %q type = %s, want %s", tc.in, cmd.Type, tc.typeWant)
		}
	}
}

func TestParseAddArguments(t *testing.T) {
	cmd, err := Parse("add 2 45 Review   pull requests", today)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Add.After.Position != 2 || cmd.Add.Minutes != 45 || cmd.Add.Name != "Review pull requests" {
		t.Fatalf("unexpected add args: %+v", *cmd.Add)
	}
}

func TestParseRejectsBadArguments(t *testing.T) {
	inputs := []string{
		"add 2 30",
		"add 2 zero nap",
		"add 2 -5 nap",
		"add last 30 after midnight",
		"add x 30 nap",
		"delete",
		"delete -1",
		"done 1 2",
		"goto 15/01/2024",
		"reset now",
	}
	for _, in := range inputs {
		_, err := Parse(in, today)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != ErrCodeInvalidArgument {
			t.Fatalf("parse %q: expected invalid argument error, got %v", in, err)
		}
	}
}

func TestParseGotoKeywords(t *testing.T) {
	cases := map[string]string{
		"goto today":      "2024-01-15",
		"goto tomorrow":   "2024-01-16",
		"goto Yesterday":  "2024-01-14",
		"goto 2024-03-01": "2024-03-01",
	}
	for in, want := range cases {
		cmd, err := Parse(in, today)
		if err != nil {
			t.Fatalf("parse %q failed: %v", in, err)
		}
		if got := cmd.Goto.Date.String(); got != want {
			t.Fatalf("parse %q date = %s, want %s", in, got, want)
		}
	}
}

func TestParseTargetKeywords(t *testing.T) {
	first, err := ParseTarget("first")
	if err != nil || first.Position != model.FirstPosition || first.String() != "first" {
		t.Fatalf("unexpected first target: %+v err %v", first, err)
	}
	last, err := ParseTarget("LAST")
	if err != nil || last.Position != model.LastPosition || last.String() != "last" {
		t.Fatalf("unexpected last target: %+v err %v", last, err)
	}
}

func TestParseUnknownAndEmpty(t *testing.T) {
	_, err := Parse("/snooze 3", today)
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeUnknownCommand {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	_, err = Parse("  / ", today)
	if !errors.As(err, &ce) || ce.Code != ErrCodeEmptyInput {
		t.Fatalf("expected empty input error, got %v", err)
	}
}

func TestExecuteDispatch(t *testing.T) {
	cmd, err := Parse("/add 1 20 write docs", today)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	called := false
	res, err := Execute(cmd, Handlers{
		Add: func(a AddArgs) (Result, error) {
			called = true
			if a.Name != "write docs" || a.Minutes != 20 {
				t.Fatalf("unexpected args: %+v", a)
			}
			return Result{Message: "ok"}, nil
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !called || res.Message != "ok" {
		t.Fatalf("dispatch failed, called=%v res=%+v", called, res)
	}
}

func TestExecuteMissingHandler(t *testing.T) {
	cmd, err := Parse("reset", today)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = Execute(cmd, Handlers{})
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeHandlerMissing {
		t.Fatalf("expected missing handler error, got %v", err)
	}
}
