package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAggregatorFlushesGroup(t *testing.T) {
	flushed := make(chan Group, 1)
	a := New(Options{Debounce: 20 * time.Millisecond, OnFlush: func(g Group) { flushed <- g }})
	defer a.Stop()

	require.True(t, a.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g", FileID: "a"}))
	require.True(t, a.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g", FileID: "b", Caption: "Brand: Acme"}))
	require.True(t, a.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g", FileID: "c"}))

	select {
	case g := <-flushed:
		assert.Equal(t, int64(1), g.ChatID)
		assert.Equal(t, int64(7), g.UserID)
		assert.Equal(t, []string{"a", "b"}, g.FileIDs)
		assert.Equal(t, 1, g.Dropped)
		assert.Equal(t, "Brand: Acme", g.Caption)
	case <-time.After(2 * time.Second):
		t.Fatal("group was not flushed")
	}
	assert.Equal(t, 0, a.Pending())
}

func TestAggregatorIgnoresLooseItems(t *testing.T) {
	a := New(Options{})
	defer a.Stop()

	assert.False(t, a.Add(Item{ChatID: 1, FileID: "a"}))
	assert.False(t, a.Add(Item{ChatID: 1, MediaGroupID: "g"}))
	assert.Equal(t, 0, a.Pending())
}

func TestAggregatorStopDiscardsPending(t *testing.T) {
	called := make(chan struct{}, 1)
	a := New(Options{Debounce: time.Hour, OnFlush: func(Group) { called <- struct{}{} }})

	require.True(t, a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "a"}))
	assert.Equal(t, 1, a.Pending())

	a.Stop()
	assert.Equal(t, 0, a.Pending())
	assert.False(t, a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "b"}))

	select {
	case <-called:
		t.Fatal("flush ran after stop")
	default:
	}
}
