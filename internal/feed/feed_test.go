package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/dayplan/internal/model"
)

func snapshotOf(date model.Date, names ...string) Snapshot {
	tasks := make([]model.Task, 0, len(names))
	for i, n := range names {
		tasks = append(tasks, model.Task{ID: int64(i + 1), Name: n, Position: i + 1})
	}
	return Snapshot{Date: date, Tasks: tasks, Completed: map[int64]bool{}}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for snapshot")
		return Snapshot{}
	}
}

func TestPublishReachesSubscribersOfThatDate(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	day := model.NewDate(2024, 1, 15)
	other := day.AddDays(1)
	ch1 := pub.Subscribe(day)
	ch2 := pub.Subscribe(day)
	chOther := pub.Subscribe(other)

	pub.Publish(snapshotOf(day, "Lunch"))

	assert.Equal(t, "Lunch", receive(t, ch1).Tasks[0].Name)
	assert.Equal(t, "Lunch", receive(t, ch2).Tasks[0].Name)
	select {
	case <-chOther:
		t.Fatal("subscriber of another date should not receive")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSlowSubscriberKeepsNewestSnapshot(t *testing.T) {
	pub := NewMemoryPublisher(WithBufferSize(1))
	defer pub.Close()

	day := model.NewDate(2024, 1, 15)
	ch := pub.Subscribe(day)
	pub.Publish(snapshotOf(day, "v1"))
	pub.Publish(snapshotOf(day, "v2"))
	pub.Publish(snapshotOf(day, "v3"))

	assert.Equal(t, "v3", receive(t, ch).Tasks[0].Name)
}

func TestUnsubscribeAndClose(t *testing.T) {
	pub := NewMemoryPublisher()
	day := model.NewDate(2024, 1, 15)

	ch := pub.Subscribe(day)
	require.Equal(t, 1, pub.SubscriberCount(day))
	pub.Unsubscribe(day, ch)
	assert.Equal(t, 0, pub.SubscriberCount(day))
	_, ok := <-ch
	assert.False(t, ok, "unsubscribed channel should be closed")

	kept := pub.Subscribe(day)
	pub.Close()
	_, ok = <-kept
	assert.False(t, ok, "close should close subscriber channels")

	late := pub.Subscribe(day)
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")
	pub.Publish(snapshotOf(day, "ignored"))
}
