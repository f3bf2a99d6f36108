package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("x", Payload{})
	require.NoError(t, err)

	status, ok := r.Status("x")
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, status)

	require.NoError(t, r.MarkDone("x"))
	status, ok = r.Status("x")
	require.True(t, ok)
	assert.Equal(t, StatusDone, status)

	_, ok = r.Status("unknown")
	assert.False(t, ok)
}

func TestRegistry_CreateRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("x", Payload{})
	require.NoError(t, err)

	_, err = r.Create("x", Payload{})
	assert.True(t, apperr.Is(err, apperr.ErrAlreadyExists))

	_, err = r.Create("", Payload{})
	assert.True(t, apperr.Is(err, apperr.ErrInputValidation))
}

func TestRegistry_UnknownJob(t *testing.T) {
	r := NewRegistry()

	assert.True(t, apperr.Is(r.MarkDone("nope"), apperr.ErrNotFound))
	assert.True(t, apperr.Is(r.MarkFailed("nope", nil), apperr.ErrNotFound))
	assert.True(t, apperr.Is(r.AddVideo("nope", "v1"), apperr.ErrNotFound))
	assert.True(t, apperr.Is(r.RecordSegment("nope", SegmentOutcome{}), apperr.ErrNotFound))

	_, ok := r.Videos("nope")
	assert.False(t, ok)
	assert.False(t, r.Remove("nope"))
}

func TestRegistry_TerminalTransitionsOnce(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("x", Payload{})
	require.NoError(t, err)

	require.NoError(t, r.MarkFailed("x", errors.New("all segments failed")))
	assert.True(t, apperr.Is(r.MarkDone("x"), apperr.ErrConflict))
	assert.True(t, apperr.Is(r.MarkFailed("x", nil), apperr.ErrConflict))
	assert.True(t, apperr.Is(r.AddVideo("x", "v1"), apperr.ErrConflict))

	job, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "all segments failed", job.Error)
}

func TestRegistry_VideosAndSegments(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("x", Payload{})
	require.NoError(t, err)

	require.NoError(t, r.AddVideo("x", "v1"))
	require.NoError(t, r.RecordSegment("x", SegmentOutcome{Segment: "segment 1", VideoID: "v1"}))
	require.NoError(t, r.RecordSegment("x", SegmentOutcome{Segment: "segment 2", Error: "overlay failed"}))
	require.NoError(t, r.AddVideo("x", "v3"))

	videos, ok := r.Videos("x")
	require.True(t, ok)
	assert.Equal(t, []string{"v1", "v3"}, videos)

	videos[0] = "mutated"
	job, _ := r.Get("x")
	assert.Equal(t, []string{"v1", "v3"}, job.Videos)
	assert.True(t, job.PartialFailure)
	assert.Len(t, job.Segments, 2)
}

func TestRegistry_VideosEmptyNotNil(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("x", Payload{})
	require.NoError(t, err)

	videos, ok := r.Videos("x")
	require.True(t, ok)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestRegistry_TerminalBeforeAndRemove(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	_, _ = r.Create("old", Payload{})
	require.NoError(t, r.MarkDone("old"))

	now = base.Add(2 * time.Hour)
	_, _ = r.Create("running", Payload{})
	_, _ = r.Create("recent", Payload{})
	require.NoError(t, r.MarkDone("recent"))

	stale := r.TerminalBefore(base.Add(time.Hour))
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)

	assert.True(t, r.Remove("old"))
	_, ok := r.Get("old")
	assert.False(t, ok)
	assert.Len(t, r.List(), 2)
}

func TestRegistry_ConcurrentAppends(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("x", Payload{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.AddVideo("x", fmt.Sprintf("v%d", i)))
			_, _ = r.Status("x")
			_, _ = r.Videos("x")
		}()
	}
	wg.Wait()

	videos, _ := r.Videos("x")
	assert.Len(t, videos, 50)
}
