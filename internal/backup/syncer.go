package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/dayplan/internal/feed"
	"github.com/sandeepkv93/dayplan/internal/model"
)

// Planner is the part of the engine a sync needs.
type Planner interface {
	Snapshot(ctx context.Context, date model.Date) (feed.Snapshot, error)
	BulkReplace(ctx context.Context, date model.Date, tasks []model.Task) error
}

// DatabaseSnapshotter copies the whole local store to a file.
type DatabaseSnapshotter interface {
	Snapshot(ctx context.Context, destPath string) error
}

// Syncer moves day snapshots between the local planner and a Remote.
type Syncer struct {
	remote   Remote
	planner  Planner
	database DatabaseSnapshotter
	folderID string
	tmpDir   string
	logger   *slog.Logger
	now      func() time.Time
}

type SyncerOption func(*Syncer)

func WithFolder(folderID string) SyncerOption {
	return func(s *Syncer) { s.folderID = folderID }
}

func WithDatabase(db DatabaseSnapshotter) SyncerOption {
	return func(s *Syncer) { s.database = db }
}

func WithTempDir(dir string) SyncerOption {
	return func(s *Syncer) { s.tmpDir = dir }
}

func WithSyncLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSyncClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSyncer(remote Remote, planner Planner, opts ...SyncerOption) (*Syncer, error) {
	if remote == nil || planner == nil {
		return nil, errors.New("backup: remote and planner are required")
	}
	s := &Syncer{
		remote:  remote,
		planner: planner,
		tmpDir:  os.TempDir(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SnapshotName is the remote file name a day is uploaded as.
func SnapshotName(date model.Date) string {
	return "dayplan-" + date.String() + ".db"
}

func (s *Syncer) List(ctx context.Context) ([]RemoteFile, error) {
	return s.remote.ListRemoteFiles(ctx, s.folderID)
}

// Backup uploads the resolved tasks of date as a snapshot file.
func (s *Syncer) Backup(ctx context.Context, date model.Date) (RemoteFile, error) {
	snap, err := s.planner.Snapshot(ctx, date)
	if err != nil {
		return RemoteFile{}, err
	}
	tmp := s.tempPath()
	defer os.Remove(tmp)
	if err := WriteSnapshot(ctx, tmp, snap.Tasks); err != nil {
		return RemoteFile{}, err
	}
	file, err := s.remote.UploadFile(ctx, s.folderID, SnapshotName(date), tmp)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("upload %s: %w", date, err)
	}
	s.logger.Info("day backed up", "date", date.String(), "tasks", len(snap.Tasks), "file", file.ID)
	return file, nil
}

// BackupDatabase uploads a copy of the whole local store.
func (s *Syncer) BackupDatabase(ctx context.Context) (RemoteFile, error) {
	if s.database == nil {
		return RemoteFile{}, errors.New("backup: no database configured")
	}
	tmp := s.tempPath()
	defer os.Remove(tmp)
	if err := s.database.Snapshot(ctx, tmp); err != nil {
		return RemoteFile{}, fmt.Errorf("snapshot database: %w", err)
	}
	name := "dayplan-full-" + s.now().UTC().Format("20060102T150405Z") + ".db"
	file, err := s.remote.UploadFile(ctx, s.folderID, name, tmp)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("upload database: %w", err)
	}
	s.logger.Info("database backed up", "file", file.ID, "name", name)
	return file, nil
}

// Restore replaces the tasks of date with the snapshot stored as fileID.
// Local data is untouched unless the whole snapshot downloads and decodes.
func (s *Syncer) Restore(ctx context.Context, date model.Date, fileID string) error {
	tmp := s.tempPath()
	defer os.Remove(tmp)
	if err := s.remote.DownloadRemoteFile(ctx, fileID, tmp); err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	tasks, err := ReadSnapshot(ctx, tmp)
	if err != nil {
		return err
	}
	if err := checkBoundaries(tasks); err != nil {
		return err
	}
	if err := s.planner.BulkReplace(ctx, date, tasks); err != nil {
		return err
	}
	s.logger.Info("day restored", "date", date.String(), "tasks", len(tasks), "file", fileID)
	return nil
}

func (s *Syncer) tempPath() string {
	return filepath.Join(s.tmpDir, "dayplan-"+uuid.NewString()+".db")
}

// checkBoundaries requires exactly one start and one end boundary.
func checkBoundaries(tasks []model.Task) error {
	var first, last int
	for _, t := range tasks {
		switch {
		case t.IsFirst():
			first++
		case t.IsLast():
			last++
		}
	}
	if first != 1 || last != 1 {
		return fmt.Errorf("%w: want one start and one end of day, got %d and %d", ErrInvalidSnapshot, first, last)
	}
	return nil
}
