package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/media"
	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/internal/timeline"
	"github.com/sngdarren/mr-team/internal/videos"
	"github.com/sngdarren/mr-team/pkg/log"
)

var tracer = otel.Tracer("github.com/sngdarren/mr-team/internal/service")

// MediaTool is the media work one segment needs.
type MediaTool interface {
	Overlay(ctx context.Context, req media.OverlayRequest) (string, error)
	MergeAudio(ctx context.Context, clips []string, output string) (string, error)
	Stitch(ctx context.Context, video, audio, output string) (string, error)
}

// Publisher mirrors a finished video somewhere else and returns its location.
type Publisher interface {
	Publish(ctx context.Context, videoID, path string) (string, error)
}

type ComposerConfig struct {
	Background    string
	AvatarA       string
	AvatarB       string
	BufferSeconds float64
	AvatarScale   float64
	AvatarAnchor  media.Anchor
	OutputDir     string
	Workers       int
}

// SegmentResult is the outcome of one segment: a video id on success, Err otherwise.
type SegmentResult struct {
	Segment string
	VideoID string
	Err     error
}

func (r SegmentResult) Succeeded() bool {
	return r.Err == nil && r.VideoID != ""
}

// Composer turns rendered segments into composite videos and registers them.
type Composer struct {
	cfg       ComposerConfig
	media     MediaTool
	videos    *videos.Registry
	jobs      *jobs.Registry
	publisher Publisher
	pool      *ants.Pool
	newID     func() string
}

type ComposerOption func(*Composer)

// WithPublisher mirrors every finished video through p.
func WithPublisher(p Publisher) ComposerOption {
	return func(c *Composer) {
		c.publisher = p
	}
}

func withIDs(fn func() string) ComposerOption {
	return func(c *Composer) {
		c.newID = fn
	}
}

func NewComposer(
	cfg ComposerConfig,
	tool MediaTool,
	videoRegistry *videos.Registry,
	jobRegistry *jobs.Registry,
	opts ...ComposerOption,
) (*Composer, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSeconds < 0 {
		return nil, apperr.New(apperr.ErrConfig, "buffer seconds must not be negative")
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfig, "create segment pool")
	}

	c := &Composer{
		cfg:    cfg,
		media:  tool,
		videos: videoRegistry,
		jobs:   jobRegistry,
		pool:   pool,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close stops the segment pool.
func (c *Composer) Close() {
	c.pool.Release()
}

// ComposeAll composes every segment of doc and returns one result per segment, in
// document order. A failing segment does not stop the others.
func (c *Composer) ComposeAll(ctx context.Context, jobID string, doc *metadata.Document, clipDir, workDir string) []SegmentResult {
	names := doc.Names()
	results := make([]SegmentResult, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		seg, _ := doc.Get(name)
		results[i].Segment = name

		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			var videoID string
			err := apperr.SafeExecute(func() (err error) {
				videoID, err = c.ComposeSegment(ctx, jobID, name, seg, clipDir, workDir)
				return err
			})
			results[i].VideoID = videoID
			results[i].Err = err
		})
		if err != nil {
			wg.Done()
			results[i].Err = apperr.Wrap(err, apperr.ErrComposition, "schedule %s", name)
		}
	}
	wg.Wait()

	for _, r := range results {
		if r.Succeeded() {
			metrics.SegmentsComposed.WithLabelValues("success").Inc()
		} else {
			metrics.SegmentsComposed.WithLabelValues("failure").Inc()
			log.Warn("Job %s: %s failed: %v", jobID, r.Segment, r.Err)
		}
	}
	return results
}

// ComposeSegment renders one segment: overlay, merged speech, stitch, then registers
// the video with both registries. Stages run strictly in that order.
func (c *Composer) ComposeSegment(
	ctx context.Context,
	jobID, name string,
	seg *metadata.SegmentMetadata,
	clipDir, workDir string,
) (string, error) {
	ctx, span := tracer.Start(ctx, "compose_segment")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID), attribute.String("segment", name))

	videoID, err := c.composeSegment(ctx, jobID, name, seg, clipDir, workDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("video.id", videoID))
	return videoID, nil
}

func (c *Composer) composeSegment(
	ctx context.Context,
	jobID, name string,
	seg *metadata.SegmentMetadata,
	clipDir, workDir string,
) (string, error) {
	if seg == nil {
		return "", apperr.New(apperr.ErrInputValidation, "%s has no metadata", name)
	}
	if err := seg.ValidateForComposition(); err != nil {
		return "", err
	}
	tl, err := timeline.Derive(seg.Timestamps, c.cfg.BufferSeconds)
	if err != nil {
		return "", err
	}

	segDir := filepath.Join(workDir, segmentDir(name))
	log.Info("Job %s: composing %s (%d lines, %.2fs)", jobID, name, seg.Lines(), tl.End)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	started := time.Now()
	silent, err := c.media.Overlay(ctx, media.OverlayRequest{
		Background: c.cfg.Background,
		AvatarA:    c.cfg.AvatarA,
		AvatarB:    c.cfg.AvatarB,
		Durations:  tl.Durations,
		Person:     seg.Person,
		StartTime:  0,
		EndTime:    tl.End,
		Scale:      c.cfg.AvatarScale,
		Anchor:     c.cfg.AvatarAnchor,
		Output:     filepath.Join(segDir, "overlay.mp4"),
	})
	if err != nil {
		return "", err
	}
	metrics.ObserveStage("overlay", time.Since(started).Seconds())

	if err := ctx.Err(); err != nil {
		return "", err
	}
	clips := make([]string, len(seg.Filename))
	for i, fn := range seg.Filename {
		clips[i] = filepath.Join(clipDir, fn)
	}
	started = time.Now()
	audio, err := c.media.MergeAudio(ctx, clips, filepath.Join(segDir, "speech.wav"))
	if err != nil {
		return "", err
	}
	metrics.ObserveStage("merge_audio", time.Since(started).Seconds())

	if err := ctx.Err(); err != nil {
		return "", err
	}
	videoID := c.newID()
	output := filepath.Join(c.cfg.OutputDir, videoID+".mp4")
	started = time.Now()
	if _, err := c.media.Stitch(ctx, silent, audio, output); err != nil {
		return "", err
	}
	metrics.ObserveStage("stitch", time.Since(started).Seconds())

	if err := c.videos.Add(videos.Video{
		ID:      videoID,
		Path:    output,
		JobID:   jobID,
		Segment: name,
	}); err != nil {
		return "", err
	}
	if err := c.jobs.AddVideo(jobID, videoID); err != nil {
		c.videos.Remove(videoID)
		return "", err
	}
	c.publish(ctx, videoID, output)

	log.Info("Job %s: %s composed as video %s", jobID, name, videoID)
	return videoID, nil
}

// publish is best effort; the local file stays the source of truth.
func (c *Composer) publish(ctx context.Context, videoID, path string) {
	if c.publisher == nil {
		return
	}
	url, err := c.publisher.Publish(ctx, videoID, path)
	if err != nil {
		log.Warn("Failed to publish video %s: %v", videoID, err)
		return
	}
	if err := c.videos.SetRemoteURL(videoID, url); err != nil {
		log.Warn("Failed to record remote url of video %s: %v", videoID, err)
	}
}

func segmentDir(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

func (r SegmentResult) String() string {
	if r.Succeeded() {
		return fmt.Sprintf("%s: video %s", r.Segment, r.VideoID)
	}
	return fmt.Sprintf("%s: %v", r.Segment, r.Err)
}
