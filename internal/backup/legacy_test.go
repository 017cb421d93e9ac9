package backup

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	day := model.DefaultDay(model.NewDate(2024, 1, 15))
	for i := range day {
		day[i].ID = int64(100 + i)
	}
	day[0].ID = model.FirstTaskID
	day[len(day)-1].ID = model.LastTaskID
	reminder := model.NewClock(6, 55)
	day[2].ReminderTime = &reminder

	path := filepath.Join(t.TempDir(), "day.db")
	require.NoError(t, WriteSnapshot(ctx, path, day))

	got, err := ReadSnapshot(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, len(day))

	assert.True(t, got[0].IsFirst())
	assert.True(t, got[0].IsRecurring)
	assert.True(t, got[len(got)-1].IsLast())
	assert.Equal(t, model.DayEnd, got[len(got)-1].EndTime)
	for i := 1; i < len(got)-1; i++ {
		assert.Zero(t, got[i].ID, "row %d keeps no id", i)
		assert.Equal(t, day[i].Name, got[i].Name)
		assert.Equal(t, day[i].Notes, got[i].Notes)
		assert.Equal(t, day[i].Type, got[i].Type)
		assert.Equal(t, day[i].StartTime, got[i].StartTime)
		assert.Equal(t, day[i].Duration, got[i].Duration)
		assert.Equal(t, day[i].Position, got[i].Position)
	}
	require.NotNil(t, got[2].ReminderTime)
	assert.Equal(t, "06:55", got[2].ReminderTime.String())
}

func TestWriteSnapshotReplacesExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "day.db")
	require.NoError(t, WriteSnapshot(ctx, path, model.DefaultDay(model.NewDate(2024, 1, 15))))

	short := []model.Task{
		model.FirstTask("Sleep", model.NewClock(8, 0)),
		model.LastTask("Sleep", model.NewClock(8, 0)),
	}
	require.NoError(t, WriteSnapshot(ctx, path, short))

	got, err := ReadSnapshot(ctx, path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadSnapshotRejectsForeignFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE notes (body TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = ReadSnapshot(ctx, path)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = ReadSnapshot(ctx, filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestDecodeLegacyRowFallsBackToDuration(t *testing.T) {
	task, err := decodeLegacyRow(legacyRow{
		id: "7", name: "Walk", duration: "45", start: "17:00", kind: "chore", position: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "17:45", task.EndTime.String())
	assert.Equal(t, model.TaskTypeUndefined, task.Type)
	assert.Zero(t, task.ID)

	_, err = decodeLegacyRow(legacyRow{name: "Broken", duration: "0", start: "17:00", position: "1"})
	assert.ErrorIs(t, err, model.ErrInvalidDuration)
}

func TestDecodeLegacyRowRejectsCorruptID(t *testing.T) {
	_, err := decodeLegacyRow(legacyRow{id: "-1x", name: "Sleep", duration: "360", start: "00:01", position: "5"})
	assert.ErrorContains(t, err, `id "-1x"`)

	task, err := decodeLegacyRow(legacyRow{name: "No id", duration: "30", start: "09:00", position: "2"})
	require.NoError(t, err)
	assert.Zero(t, task.ID)
	assert.False(t, task.IsSentinel())
}
