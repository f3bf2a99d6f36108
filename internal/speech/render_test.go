package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSynth struct {
	mu       sync.Mutex
	inflight int32
	peak     int32
	fail     map[string]bool
	delay    func(text string) time.Duration
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, speaker metadata.Speaker) ([]byte, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[text] {
		return nil, fmt.Errorf("voice unavailable")
	}
	return []byte(string(speaker) + ":" + text), nil
}

func requests(n int) []Request {
	cast := metadata.DefaultCast()
	reqs := make([]Request, 0, n)
	for i := range n {
		speaker := metadata.SpeakerA
		if i%2 == 1 {
			speaker = metadata.SpeakerB
		}
		reqs = append(reqs, Request{
			Dialogue:    i / 4,
			Line:        i % 4,
			Speaker:     speaker,
			SpeakerName: cast.Name(speaker),
			Text:        fmt.Sprintf("line-%d", i),
		})
	}
	return reqs
}

func TestRender_BoundedAndReassembledByIndex(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{
		// later lines finish first
		delay: func(text string) time.Duration {
			var i int
			_, _ = fmt.Sscanf(text, "line-%d", &i)
			return time.Duration(12-i) * time.Millisecond
		},
	}

	reqs := requests(12)
	clips, err := Render(context.Background(), synth, reqs, dir, 3)
	require.NoError(t, err)
	require.Len(t, clips, 12)
	assert.LessOrEqual(t, synth.peak, int32(3))

	for i, clip := range clips {
		require.NoError(t, clip.Err)
		assert.Equal(t, reqs[i], clip.Request)
		assert.Equal(t, filepath.Join(dir, reqs[i].FileName()), clip.Path)

		data, err := os.ReadFile(clip.Path)
		require.NoError(t, err)
		assert.Equal(t, string(reqs[i].Speaker)+":"+reqs[i].Text, string(data))
	}
	assert.Equal(t, "D0_S1_morty.mp3", clips[1].FileName())
}

func TestRender_FailedLineDoesNotAbortSiblings(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{fail: map[string]bool{"line-1": true}}

	clips, err := Render(context.Background(), synth, requests(3), dir, 2)
	require.NoError(t, err)

	assert.NoError(t, clips[0].Err)
	assert.Error(t, clips[1].Err)
	assert.Empty(t, clips[1].Path)
	assert.NoError(t, clips[2].Err)

	_, statErr := os.Stat(filepath.Join(dir, "D0_S1_morty.mp3"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Render(ctx, &fakeSynth{}, requests(2), t.TempDir(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
