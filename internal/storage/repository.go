package storage

import (
	"context"
	"errors"

	"github.com/sandeepkv93/dayplan/internal/model"
)

var (
	ErrNotFound            = errors.New("storage: not found")
	ErrConstraintViolation = errors.New("storage: constraint violation")
)

type NamePosition struct {
	ID       int64
	Name     string
	Position int
}

// Reader reads task templates and their per-date state. Date-scoped reads
// work on the resolved set for that date.
type Reader interface {
	Get(ctx context.Context, id int64) (model.Task, error)
	GetAtPosition(ctx context.Context, date model.Date, position int) (model.Task, error)
	ListNamesAndPositions(ctx context.Context, date model.Date) ([]NamePosition, error)
	ListForDate(ctx context.Context, date model.Date) ([]model.Task, error)
	ListTemplates(ctx context.Context) ([]model.Task, error)
	PinnedTaskIDs(ctx context.Context, date model.Date) (map[int64]bool, error)
	ListCompletions(ctx context.Context, date model.Date) (map[int64]bool, error)
	// SlotsOn returns the per-date placement of recurring tasks on date.
	SlotsOn(ctx context.Context, date model.Date) (map[int64]model.Slot, error)
}

type Writer interface {
	// Insert stores task and returns its id. A non-zero task.ID is kept as is.
	Insert(ctx context.Context, task model.Task) (int64, error)
	Update(ctx context.Context, task model.Task) error
	Delete(ctx context.Context, id int64) error
	PinToDate(ctx context.Context, id int64, date model.Date) error

	// Date-scoped writes. None of them changes what another date resolves
	// to, except for the shared name, notes, type and reminder of a
	// recurring task.
	AddOn(ctx context.Context, date model.Date, task model.Task) (int64, error)
	Place(ctx context.Context, date model.Date, task model.Task) error
	RemoveFrom(ctx context.Context, date model.Date, task model.Task) error
	ClearDate(ctx context.Context, date model.Date) error
	SetCompletion(ctx context.Context, c model.Completion) error
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	Reader
	Writer
}

type Repository interface {
	Tx

	// RunInTx runs fn in one transaction. Any error or panic from fn rolls
	// every write back; panics are re-raised after the rollback.
	RunInTx(ctx context.Context, fn func(Tx) error) error
	// Snapshot writes a consistent copy of the database to destPath.
	Snapshot(ctx context.Context, destPath string) error
	Path() string
	Close() error
}
