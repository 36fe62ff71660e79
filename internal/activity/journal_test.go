package activity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/courier/internal/instance"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	j.Notify(instance.Notice{At: base, Instance: "agente", Level: instance.LevelInfo, Topic: instance.TopicTransition, Title: "Waiting for QR scan"})
	j.Notify(instance.Notice{At: base.Add(time.Second), Instance: "other", Title: "unrelated"})
	j.Notify(instance.Notice{At: base.Add(2 * time.Second), Instance: "agente", Level: instance.LevelError, Topic: instance.TopicPoll, Title: "Gateway poll failed", Detail: "timeout"})

	got, err := j.Recent(ctx, "agente", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Gateway poll failed", got[0].Title)
	assert.Equal(t, instance.LevelError, got[0].Level)
	assert.Equal(t, instance.TopicPoll, got[0].Topic)
	assert.Equal(t, "timeout", got[0].Detail)
	assert.True(t, got[0].At.Equal(base.Add(2*time.Second)))

	assert.Equal(t, "Waiting for QR scan", got[1].Title)
	assert.Equal(t, instance.LevelInfo, got[1].Level)
}

func TestJournal_RecentLimit(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, instance.Notice{Instance: "agente", Title: string(rune('a' + i))}))
	}

	got, err := j.Recent(ctx, "agente", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e", got[0].Title)
	assert.Equal(t, "d", got[1].Title)

	none, err := j.Recent(ctx, "agente", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal_Prune(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, j.Record(ctx, instance.Notice{Instance: "agente", Title: "n"}))
	}
	require.NoError(t, j.Record(ctx, instance.Notice{Instance: "other", Title: "keep"}))

	removed, err := j.Prune(ctx, "agente", 4)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	left, err := j.Recent(ctx, "agente", 100)
	require.NoError(t, err)
	assert.Len(t, left, 4)

	other, err := j.Recent(ctx, "other", 100)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestJournal_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", FileName)
	ctx := context.Background()

	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, instance.Notice{Instance: "agente", Title: "Instance created"}))
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Recent(ctx, "agente", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Instance created", got[0].Title)
}
