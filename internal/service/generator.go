package service

import (
	"context"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/dialogue"
	"github.com/sngdarren/mr-team/internal/document"
	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/internal/speech"
	"github.com/sngdarren/mr-team/pkg/log"
)

const metadataFile = "metadata.json"

// DialogueWriter cuts a document into scenes and writes a dialogue for each.
type DialogueWriter interface {
	Segment(ctx context.Context, text, languageName string) ([]string, error)
	Dialogue(ctx context.Context, chunk, languageName string) ([]dialogue.Line, error)
	Cast() metadata.Cast
}

// Prober measures a rendered clip.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type GeneratorConfig struct {
	DialogueConcurrency int
	SpeechConcurrency   int
}

// Generator runs a job end to end: document text, dialogues, speech, metadata
// and finally one composite video per segment.
type Generator struct {
	cfg       GeneratorConfig
	extractor document.Extractor
	writer    DialogueWriter
	synth     speech.Synthesizer
	prober    Prober
	composer  *Composer
	jobs      *jobs.Registry
}

func NewGenerator(
	cfg GeneratorConfig,
	extractor document.Extractor,
	writer DialogueWriter,
	synth speech.Synthesizer,
	prober Prober,
	composer *Composer,
	jobRegistry *jobs.Registry,
) *Generator {
	if cfg.DialogueConcurrency <= 0 {
		cfg.DialogueConcurrency = 3
	}
	if cfg.SpeechConcurrency <= 0 {
		cfg.SpeechConcurrency = speech.DefaultConcurrency
	}
	return &Generator{
		cfg:       cfg,
		extractor: extractor,
		writer:    writer,
		synth:     synth,
		prober:    prober,
		composer:  composer,
		jobs:      jobRegistry,
	}
}

// Run is a jobs.Executor. It returns an error when no segment produced a video.
func (g *Generator) Run(ctx context.Context, job *jobs.Job) error {
	ctx, span := tracer.Start(ctx, "generate")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", job.ID))

	workDir := job.Payload.WorkDir
	clipDir := filepath.Join(workDir, "clips")

	text, err := g.extract(ctx, job.Payload.DocumentPath)
	if err != nil {
		return err
	}
	languageName := document.LanguageName(document.DetectLanguage(text))
	log.Info("Job %s: extracted %d characters of %s text", job.ID, len(text), languageName)

	dialogues, err := g.dialogues(ctx, job.ID, text, languageName)
	if err != nil {
		return err
	}

	scripted := scriptDocument(dialogues)
	if err := scripted.Save(filepath.Join(workDir, metadataFile)); err != nil {
		return err
	}

	clips, err := speech.Render(ctx, g.synth, g.speechRequests(dialogues), clipDir, g.cfg.SpeechConcurrency)
	if err != nil {
		return err
	}

	rendered, skipped := g.timeDocument(ctx, scripted, clips)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rendered.Save(filepath.Join(workDir, metadataFile)); err != nil {
		return err
	}

	results := g.composer.ComposeAll(ctx, job.ID, rendered, clipDir, workDir)
	return g.record(job.ID, scripted.Names(), results, skipped)
}

func (g *Generator) extract(ctx context.Context, path string) (string, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("extract", time.Since(started).Seconds()) }()

	text, err := g.extractor.ExtractText(ctx, path)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", apperr.New(apperr.ErrEmptyInput, "document has no extractable text")
	}
	return text, nil
}

// dialogues returns one slice of lines per scene, indexed like the scenes.
// A scene whose dialogue could not be written is left empty.
func (g *Generator) dialogues(ctx context.Context, jobID, text, languageName string) ([][]dialogue.Line, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("dialogue", time.Since(started).Seconds()) }()

	chunks, err := g.writer.Segment(ctx, text, languageName)
	if err != nil {
		return nil, err
	}
	log.Info("Job %s: document split into %d scenes", jobID, len(chunks))

	out := make([][]dialogue.Line, len(chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.DialogueConcurrency)
	for i, chunk := range chunks {
		eg.Go(func() error {
			lines, err := g.writer.Dialogue(egCtx, chunk, languageName)
			if err != nil {
				log.Warn("Job %s: dialogue for scene %d failed: %v", jobID, i+1, err)
				return nil
			}
			out[i] = lines
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, lines := range out {
		if len(lines) > 0 {
			return out, nil
		}
	}
	return nil, apperr.New(apperr.ErrRemoteService, "no dialogue was generated for %d scenes", len(chunks))
}

// scriptDocument holds speakers and transcripts only; audio fields come later.
func scriptDocument(dialogues [][]dialogue.Line) *metadata.Document {
	doc := metadata.NewDocument()
	for i, lines := range dialogues {
		seg := &metadata.SegmentMetadata{
			Filename:   []string{},
			Timestamps: []float64{},
		}
		for _, line := range lines {
			seg.AppendLine(line.Speaker, line.Text)
		}
		doc.Set(metadata.SegmentName(i), seg)
	}
	return doc
}

func (g *Generator) speechRequests(dialogues [][]dialogue.Line) []speech.Request {
	cast := g.writer.Cast()
	var reqs []speech.Request
	for d, lines := range dialogues {
		for l, line := range lines {
			reqs = append(reqs, speech.Request{
				Dialogue:    d,
				Line:        l,
				Speaker:     line.Speaker,
				SpeakerName: cast.Name(line.Speaker),
				Text:        line.Text,
			})
		}
	}
	return reqs
}

// timeDocument keeps only the lines whose clip was rendered and measured, and sets
// each kept line's timestamp to the cumulative length of the kept clips so far.
// Segments with no kept line are left out; skipped counts lines dropped per segment.
func (g *Generator) timeDocument(ctx context.Context, scripted *metadata.Document, clips []speech.Clip) (*metadata.Document, map[string]int) {
	byDialogue := make(map[int][]speech.Clip)
	for _, clip := range clips {
		byDialogue[clip.Dialogue] = append(byDialogue[clip.Dialogue], clip)
	}

	rendered := metadata.NewDocument()
	skipped := make(map[string]int)
	for d, name := range scripted.Names() {
		source, _ := scripted.Get(name)
		seg := &metadata.SegmentMetadata{}
		cursor := 0.0

		for _, clip := range byDialogue[d] {
			if clip.Err != nil || clip.Path == "" {
				skipped[name]++
				continue
			}
			duration, err := g.prober.Duration(ctx, clip.Path)
			if err != nil || duration <= 0 {
				log.Warn("Skipping %s: clip could not be measured: %v", clip.FileName(), err)
				skipped[name]++
				continue
			}
			cursor += duration
			seg.AppendLine(clip.Speaker, source.Transcripts[clip.Line])
			seg.Filename = append(seg.Filename, filepath.Base(clip.Path))
			seg.Timestamps = append(seg.Timestamps, cursor)
		}

		if seg.Lines() == 0 {
			skipped[name] = source.Lines()
			continue
		}
		rendered.Set(name, seg)
	}
	return rendered, skipped
}

// record stores one outcome per scripted segment, in segment order.
func (g *Generator) record(jobID string, names []string, results []SegmentResult, skipped map[string]int) error {
	byName := make(map[string]SegmentResult, len(results))
	for _, r := range results {
		byName[r.Segment] = r
	}

	succeeded := 0
	for _, name := range names {
		outcome := jobs.SegmentOutcome{Segment: name, SkippedLines: skipped[name]}
		r, composed := byName[name]
		switch {
		case !composed:
			outcome.Error = "segment has no rendered lines"
		case r.Succeeded():
			outcome.VideoID = r.VideoID
			succeeded++
		default:
			outcome.Error = r.Err.Error()
		}
		if err := g.jobs.RecordSegment(jobID, outcome); err != nil {
			return err
		}
	}

	log.Info("Job %s: %d of %d segments produced a video", jobID, succeeded, len(names))
	if succeeded == 0 {
		return apperr.New(apperr.ErrComposition, "none of %d segments produced a video", len(names))
	}
	return nil
}
