package media

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/pkg/executor"
	"github.com/sngdarren/mr-team/pkg/file"
	"github.com/sngdarren/mr-team/pkg/log"
)

const DefaultSampleRate = 44100

// Tool drives ffmpeg and ffprobe for probing and composing media.
type Tool struct {
	exec       executor.Executor
	ffmpegCmd  string
	ffprobeCmd string
	sampleRate int
}

type Option func(*Tool)

func WithExecutor(e executor.Executor) Option {
	return func(t *Tool) {
		t.exec = e
	}
}

func WithBinaries(ffmpegCmd, ffprobeCmd string) Option {
	return func(t *Tool) {
		if ffmpegCmd != "" {
			t.ffmpegCmd = ffmpegCmd
		}
		if ffprobeCmd != "" {
			t.ffprobeCmd = ffprobeCmd
		}
	}
}

func WithSampleRate(rate int) Option {
	return func(t *Tool) {
		if rate > 0 {
			t.sampleRate = rate
		}
	}
}

func NewTool(opts ...Option) *Tool {
	t := &Tool{
		exec:       executor.New(),
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		sampleRate: DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Info is the subset of ffprobe output the pipeline relies on.
type Info struct {
	Width    int
	Height   int
	Duration float64
	HasVideo bool
	HasAudio bool
}

// Probe decodes the container header of path. Any failure is a MediaOpen error.
func (t *Tool) Probe(ctx context.Context, path string) (Info, error) {
	if !file.IsRegularFile(path) {
		return Info{}, apperr.New(apperr.ErrMediaOpen, "cannot open %s", path).
			WithContext("reason", "not a regular file")
	}

	output, err := t.exec.Execute(ctx, t.ffprobeCmd, t.probeArgs(path)...)
	if err != nil {
		log.Error("Failed to run ffprobe on %s: %v", path, err)
		return Info{}, apperr.Wrap(err, apperr.ErrMediaOpen, "cannot decode %s", path)
	}

	var probeResult struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(output), &probeResult); err != nil {
		log.Error("Failed to parse ffprobe output for %s: %v", path, err)
		return Info{}, apperr.Wrap(err, apperr.ErrMediaOpen, "unreadable probe output for %s", path)
	}
	if len(probeResult.Streams) == 0 {
		return Info{}, apperr.New(apperr.ErrMediaOpen, "no decodable streams in %s", path)
	}

	var info Info
	info.Duration = parseSeconds(probeResult.Format.Duration)
	for _, stream := range probeResult.Streams {
		switch stream.CodecType {
		case "video":
			if !info.HasVideo {
				info.HasVideo = true
				info.Width = stream.Width
				info.Height = stream.Height
			}
			if info.Duration == 0 {
				info.Duration = parseSeconds(stream.Duration)
			}
		case "audio":
			info.HasAudio = true
			if info.Duration == 0 {
				info.Duration = parseSeconds(stream.Duration)
			}
		}
	}
	return info, nil
}

// Duration returns the playable length of an audio or video file in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	info, err := t.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if info.Duration <= 0 {
		return 0, apperr.New(apperr.ErrMediaOpen, "%s reports no duration", path)
	}
	return info.Duration, nil
}

func (t *Tool) probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

// ffmpeg runs ffmpeg and removes output if the command fails.
func (t *Tool) ffmpeg(ctx context.Context, output string, args []string) error {
	if _, err := t.exec.Execute(ctx, t.ffmpegCmd, args...); err != nil {
		if rmErr := os.Remove(output); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("Failed to remove partial output %s: %v", output, rmErr)
		}
		return err
	}
	return nil
}

func parseSeconds(v string) float64 {
	if v == "" || v == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
