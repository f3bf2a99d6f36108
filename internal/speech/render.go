package speech

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/pkg/log"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 3

// Request identifies one line to render. Dialogue and Line place the result back
// into its dialogue regardless of completion order.
type Request struct {
	Dialogue    int
	Line        int
	Speaker     metadata.Speaker
	SpeakerName string
	Text        string
}

func (r Request) FileName() string {
	return metadata.ClipName(r.Dialogue, r.Line, r.SpeakerName)
}

// Clip is the outcome of one Request. Path is set on success, Err otherwise.
type Clip struct {
	Request
	Path string
	Err  error
}

// Render synthesizes every request with at most limit calls in flight and writes
// each clip into dir. The result has one entry per request at the same index.
// A failed line is reported in its Clip; only cancellation fails the whole call.
func Render(ctx context.Context, synth Synthesizer, reqs []Request, dir string, limit int) ([]Clip, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	clips := make([]Clip, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	started := time.Now()
	for i, req := range reqs {
		g.Go(func() error {
			clips[i] = renderOne(gctx, synth, req, dir)
			return nil
		})
	}
	_ = g.Wait()
	metrics.ObserveStage("speech", time.Since(started).Seconds())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return clips, nil
}

func renderOne(ctx context.Context, synth Synthesizer, req Request, dir string) Clip {
	clip := Clip{Request: req}
	if err := ctx.Err(); err != nil {
		clip.Err = err
		return clip
	}

	audio, err := synth.Synthesize(ctx, req.Text, req.Speaker)
	if err != nil {
		clip.Err = err
		log.Warn("Line %s was not rendered: %v", req.FileName(), err)
		return clip
	}

	path := filepath.Join(dir, req.FileName())
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		clip.Err = err
		return clip
	}
	clip.Path = path
	log.Debug("Rendered %s (%d bytes)", req.FileName(), len(audio))
	return clip
}
