package janitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/videos"
	"github.com/sngdarren/mr-team/pkg/file"
	"github.com/sngdarren/mr-team/pkg/icron"
	"github.com/sngdarren/mr-team/pkg/log"
)

// Remover deletes the mirrored copy of a video.
type Remover interface {
	Remove(ctx context.Context, videoID string) error
}

type Config struct {
	Retention time.Duration
	Schedule  string
	UploadDir string
	WorkDir   string
}

// Report counts what one sweep removed.
type Report struct {
	Jobs   int
	Videos int
	Files  int
}

// Janitor forgets finished jobs after the retention period and deletes their files.
type Janitor struct {
	cfg     Config
	jobs    *jobs.Registry
	videos  *videos.Registry
	remover Remover

	cron  *cron.Cron
	group singleflight.Group
}

type Option func(*Janitor)

func WithRemover(r Remover) Option {
	return func(j *Janitor) {
		j.remover = r
	}
}

func New(cfg Config, jobRegistry *jobs.Registry, videoRegistry *videos.Registry, opts ...Option) *Janitor {
	j := &Janitor{
		cfg:    cfg,
		jobs:   jobRegistry,
		videos: videoRegistry,
		cron:   cron.New(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start registers the sweep on the configured schedule.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := icron.Parse(j.cfg.Schedule); err != nil {
		return err
	}
	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		_, _, _ = j.group.Do("sweep", func() (any, error) {
			report := j.Sweep(ctx, time.Now())
			log.Info("Janitor removed %d jobs, %d videos, %d files", report.Jobs, report.Videos, report.Files)
			return nil, nil
		})
	})
	if err != nil {
		return err
	}
	j.cron.Start()

	if next, err := icron.NextRun(j.cfg.Schedule, time.Now()); err == nil {
		log.Info("Janitor scheduled (%s), next sweep at %s", j.cfg.Schedule, next.Format(time.DateTime))
	}
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes every job that finished before now minus the retention, with its
// videos and working files, then deletes stale files no job refers to.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) Report {
	var report Report
	cutoff := now.Add(-j.cfg.Retention)

	for _, job := range j.jobs.TerminalBefore(cutoff) {
		for _, v := range j.videos.ByJob(job.ID) {
			removeFile(v.Path)
			if j.remover != nil && v.RemoteURL != "" {
				if err := j.remover.Remove(ctx, v.ID); err != nil {
					log.Warn("Failed to remove mirrored video %s: %v", v.ID, err)
				}
			}
			if j.videos.Remove(v.ID) {
				report.Videos++
			}
		}
		if job.Payload.WorkDir != "" {
			if err := os.RemoveAll(job.Payload.WorkDir); err != nil {
				log.Warn("Failed to remove work dir of job %s: %v", job.ID, err)
			}
		}
		removeFile(job.Payload.DocumentPath)
		if j.jobs.Remove(job.ID) {
			report.Jobs++
		}
	}

	for _, dir := range []string{j.cfg.UploadDir, j.cfg.WorkDir} {
		report.Files += j.sweepOrphans(dir, cutoff)
	}
	return report
}

// sweepOrphans deletes entries of dir older than cutoff whose name is not a known job id.
func (j *Janitor) sweepOrphans(dir string, cutoff time.Time) int {
	if dir == "" {
		return 0
	}
	stale, err := file.FindOlderThan(dir, cutoff)
	if err != nil {
		log.Warn("Failed to list %s: %v", dir, err)
		return 0
	}

	removed := 0
	for _, path := range stale {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, live := j.jobs.Get(id); live {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			log.Warn("Failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}

func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove %s: %v", path, err)
	}
}
