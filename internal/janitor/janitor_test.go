package janitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/videos"
)

type recordingRemover struct {
	removed []string
	err     error
}

func (r *recordingRemover) Remove(_ context.Context, videoID string) error {
	r.removed = append(r.removed, videoID)
	return r.err
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestJanitor_Sweep(t *testing.T) {
	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	workDir := filepath.Join(root, "work")
	outDir := filepath.Join(root, "outputs")

	jr := jobs.NewRegistry()
	vr := videos.NewRegistry()

	finishedDoc := filepath.Join(uploadDir, "old.pdf")
	finishedWork := filepath.Join(workDir, "old")
	finishedVideo := filepath.Join(outDir, "v-old.mp4")
	touch(t, finishedDoc)
	touch(t, filepath.Join(finishedWork, "metadata.json"))
	touch(t, finishedVideo)

	_, err := jr.Create("old", jobs.Payload{DocumentPath: finishedDoc, WorkDir: finishedWork})
	require.NoError(t, err)
	require.NoError(t, jr.AddVideo("old", "v-old"))
	require.NoError(t, vr.Add(videos.Video{ID: "v-old", Path: finishedVideo, JobID: "old", RemoteURL: "http://minio/v-old"}))
	require.NoError(t, jr.MarkDone("old"))

	runningDoc := filepath.Join(uploadDir, "running.pdf")
	touch(t, runningDoc)
	_, err = jr.Create("running", jobs.Payload{DocumentPath: runningDoc})
	require.NoError(t, err)

	orphan := filepath.Join(uploadDir, "orphan.pdf")
	touch(t, orphan)

	remover := &recordingRemover{err: errors.New("bucket offline")}
	j := New(Config{Retention: time.Hour, UploadDir: uploadDir, WorkDir: workDir}, jr, vr, WithRemover(remover))

	report := j.Sweep(context.Background(), time.Now().Add(2*time.Hour))
	assert.Equal(t, Report{Jobs: 1, Videos: 1, Files: 1}, report)

	_, ok := jr.Get("old")
	assert.False(t, ok)
	assert.False(t, vr.Exists("v-old"))
	assert.Equal(t, []string{"v-old"}, remover.removed)

	for _, gone := range []string{finishedDoc, finishedWork, finishedVideo, orphan} {
		_, err := os.Stat(gone)
		assert.True(t, os.IsNotExist(err), gone)
	}

	_, ok = jr.Get("running")
	assert.True(t, ok)
	_, err = os.Stat(runningDoc)
	assert.NoError(t, err)
}

func TestJanitor_SweepKeepsRecentJobs(t *testing.T) {
	jr := jobs.NewRegistry()
	vr := videos.NewRegistry()
	_, err := jr.Create("fresh", jobs.Payload{})
	require.NoError(t, err)
	require.NoError(t, jr.MarkFailed("fresh", errors.New("boom")))

	j := New(Config{Retention: 24 * time.Hour}, jr, vr)
	report := j.Sweep(context.Background(), time.Now())

	assert.Equal(t, Report{}, report)
	_, ok := jr.Get("fresh")
	assert.True(t, ok)
}

func TestJanitor_StartRejectsBadSchedule(t *testing.T) {
	j := New(Config{Schedule: "whenever"}, jobs.NewRegistry(), videos.NewRegistry())
	assert.Error(t, j.Start(context.Background()))
}

func TestJanitor_StartStop(t *testing.T) {
	j := New(Config{Schedule: "@every 1h", Retention: time.Hour}, jobs.NewRegistry(), videos.NewRegistry())
	require.NoError(t, j.Start(context.Background()))
	j.Stop()
}
