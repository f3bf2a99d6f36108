package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/dialogue"
	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/metadata"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

const sampleText = "Black holes are regions of spacetime where gravity is so strong that nothing escapes."

func sceneDialogues() map[string][]dialogue.Line {
	return map[string][]dialogue.Line{
		"scene one": {
			{Speaker: metadata.SpeakerA, Text: "Morty, black holes eat light."},
			{Speaker: metadata.SpeakerB, Text: "fail this line"},
			{Speaker: metadata.SpeakerA, Text: "Nothing gets out."},
		},
		"scene two": {
			{Speaker: metadata.SpeakerB, Text: "fail again"},
		},
	}
}

type generatorFixture struct {
	gen     *Generator
	media   *fakeMedia
	jobs    *jobs.Registry
	job     *jobs.Job
	workDir string
}

func newGeneratorFixture(t *testing.T, extractor fakeExtractor, writer fakeWriter) *generatorFixture {
	t.Helper()
	cf := newComposerFixture(t, 1)
	workDir := t.TempDir()

	job, err := cf.jobs.Create("job-2", jobs.Payload{DocumentPath: "doc.pdf", WorkDir: workDir})
	require.NoError(t, err)

	gen := NewGenerator(GeneratorConfig{DialogueConcurrency: 2, SpeechConcurrency: 2},
		extractor, writer, fakeSynth{}, fixedProber{seconds: 1.5}, cf.composer, cf.jobs)

	return &generatorFixture{gen: gen, media: cf.media, jobs: cf.jobs, job: job, workDir: workDir}
}

func TestGenerator_Run(t *testing.T) {
	f := newGeneratorFixture(t,
		fakeExtractor{text: sampleText},
		fakeWriter{scenes: []string{"scene one", "scene two"}, dialogues: sceneDialogues()},
	)

	require.NoError(t, f.gen.Run(context.Background(), f.job))

	job, ok := f.jobs.Get("job-2")
	require.True(t, ok)
	require.Len(t, job.Videos, 1)
	assert.True(t, job.PartialFailure)
	require.Len(t, job.Segments, 2)

	assert.Equal(t, "segment 1", job.Segments[0].Segment)
	assert.Equal(t, job.Videos[0], job.Segments[0].VideoID)
	assert.Equal(t, 1, job.Segments[0].SkippedLines)

	assert.Equal(t, "segment 2", job.Segments[1].Segment)
	assert.False(t, job.Segments[1].Succeeded())
	assert.Equal(t, 1, job.Segments[1].SkippedLines)

	doc, err := metadata.Load(filepath.Join(f.workDir, metadataFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"segment 1"}, doc.Names())
	seg, _ := doc.Get("segment 1")
	assert.Equal(t, []string{"Morty, black holes eat light.", "Nothing gets out."}, seg.Transcripts)
	assert.Equal(t, []metadata.Speaker{metadata.SpeakerA, metadata.SpeakerA}, seg.Person)
	assert.Equal(t, []string{"D0_S0_rick.mp3", "D0_S2_rick.mp3"}, seg.Filename)
	assert.Equal(t, []float64{1.5, 3.0}, seg.Timestamps)

	_, err = os.Stat(filepath.Join(f.workDir, "clips", "D0_S2_rick.mp3"))
	assert.NoError(t, err)

	require.Len(t, f.media.overlays, 1)
	assert.Equal(t, []float64{1.5, 1.5}, f.media.overlays[0].Durations)
	assert.Equal(t, 13.0, f.media.overlays[0].EndTime)
}

func TestGenerator_RunFailures(t *testing.T) {
	tests := []struct {
		name      string
		extractor fakeExtractor
		writer    fakeWriter
		kind      apperr.ErrorKind
	}{
		{
			name:      "empty document",
			extractor: fakeExtractor{text: ""},
			kind:      apperr.ErrEmptyInput,
		},
		{
			name:      "extraction fails",
			extractor: fakeExtractor{err: apperr.New(apperr.ErrInputValidation, "not a pdf")},
			kind:      apperr.ErrInputValidation,
		},
		{
			name:      "segmentation fails",
			extractor: fakeExtractor{text: sampleText},
			writer:    fakeWriter{segErr: apperr.New(apperr.ErrRemoteService, "upstream 503")},
			kind:      apperr.ErrRemoteService,
		},
		{
			name:      "no dialogue written",
			extractor: fakeExtractor{text: sampleText},
			writer:    fakeWriter{scenes: []string{"unknown scene"}},
			kind:      apperr.ErrRemoteService,
		},
		{
			name:      "every line fails",
			extractor: fakeExtractor{text: sampleText},
			writer:    fakeWriter{scenes: []string{"scene two"}, dialogues: sceneDialogues()},
			kind:      apperr.ErrComposition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGeneratorFixture(t, tt.extractor, tt.writer)

			err := f.gen.Run(context.Background(), f.job)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))

			ids, _ := f.jobs.Videos("job-2")
			assert.Empty(t, ids)
		})
	}
}

func TestGenerator_RunWithQueue(t *testing.T) {
	f := newGeneratorFixture(t,
		fakeExtractor{text: sampleText},
		fakeWriter{scenes: []string{"scene one"}, dialogues: sceneDialogues()},
	)

	q := jobs.NewQueue(f.jobs, 1)
	job, err := q.Enqueue(jobs.EnqueueRequest{
		ID:      "job-3",
		Payload: jobs.Payload{DocumentPath: "doc.pdf", WorkDir: f.workDir},
	})
	require.NoError(t, err)
	q.Start(f.gen.Run)
	t.Cleanup(q.Stop)

	require.Eventually(t, func() bool {
		status, _ := f.jobs.Status(job.ID)
		return status.Terminal()
	}, testTimeout, testTick)

	got, _ := f.jobs.Get(job.ID)
	assert.Equal(t, jobs.StatusDone, got.Status)
	assert.Len(t, got.Videos, 1)
	assert.False(t, got.PartialFailure)
}

func TestGenerator_CancelledRunFails(t *testing.T) {
	f := newGeneratorFixture(t,
		fakeExtractor{text: sampleText},
		fakeWriter{scenes: []string{"scene one"}, dialogues: sceneDialogues()},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.gen.Run(ctx, f.job)
	assert.True(t, errors.Is(err, context.Canceled))
}
