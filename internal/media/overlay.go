package media

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/internal/timeline"
	"github.com/sngdarren/mr-team/pkg/file"
	"github.com/sngdarren/mr-team/pkg/log"
)

const DefaultAvatarScale = 0.3

// Anchor is where an avatar sits on the background frame.
type Anchor string

const (
	AnchorBottomCenter Anchor = "bottom-center"
	AnchorBottomLeft   Anchor = "bottom-left"
	AnchorBottomRight  Anchor = "bottom-right"
	AnchorCenter       Anchor = "center"
	AnchorTopCenter    Anchor = "top-center"
)

func (a Anchor) Valid() bool {
	switch a {
	case AnchorBottomCenter, AnchorBottomLeft, AnchorBottomRight, AnchorCenter, AnchorTopCenter:
		return true
	}
	return false
}

// position returns overlay x/y expressions (W,H main frame; w,h overlay).
func (a Anchor) position() (string, string) {
	switch a {
	case AnchorBottomLeft:
		return "0", "H-h"
	case AnchorBottomRight:
		return "W-w", "H-h"
	case AnchorCenter:
		return "(W-w)/2", "(H-h)/2"
	case AnchorTopCenter:
		return "(W-w)/2", "0"
	default:
		return "(W-w)/2", "H-h"
	}
}

type OverlayRequest struct {
	Background string
	AvatarA    string
	AvatarB    string

	Durations []float64
	Person    []metadata.Speaker

	// StartTime is where the first window begins.
	StartTime float64
	// EndTime trims the background when positive.
	EndTime float64

	Scale  float64
	Anchor Anchor
	Output string
}

// Overlay renders the background with the speaking avatar shown during each line
// and returns the path of the silent intermediate video.
func (t *Tool) Overlay(ctx context.Context, req OverlayRequest) (string, error) {
	if len(req.Durations) != len(req.Person) {
		return "", apperr.New(apperr.ErrLengthMismatch,
			"durations (%d) and person (%d) differ in length", len(req.Durations), len(req.Person))
	}
	if req.Scale <= 0 || req.Scale > 1 {
		req.Scale = DefaultAvatarScale
	}
	if !req.Anchor.Valid() {
		req.Anchor = AnchorBottomCenter
	}

	bg, err := t.Probe(ctx, req.Background)
	if err != nil {
		return "", err
	}
	if !bg.HasVideo || bg.Width <= 0 {
		return "", apperr.New(apperr.ErrMediaOpen, "background %s has no video stream", req.Background)
	}
	for _, avatar := range []string{req.AvatarA, req.AvatarB} {
		info, err := t.Probe(ctx, avatar)
		if err != nil {
			return "", err
		}
		if !info.HasVideo {
			return "", apperr.New(apperr.ErrMediaOpen, "avatar %s is not an image", avatar)
		}
	}

	end := req.EndTime
	if end > 0 && bg.Duration > 0 {
		end = math.Min(end, bg.Duration)
	}

	windows, err := timeline.Windows(req.Durations, req.Person, req.StartTime, end)
	if err != nil {
		return "", err
	}

	if err := file.EnsureParent(req.Output); err != nil {
		return "", apperr.Wrap(err, apperr.ErrComposition, "prepare overlay output")
	}

	width := avatarWidth(bg.Width, req.Scale)
	args := t.overlayArgs(req, windows, width, end)
	log.Debug("Rendering overlay %s with %d windows, trimmed to %ss", req.Output, len(windows), formatSeconds(end))

	if err := t.ffmpeg(ctx, req.Output, args); err != nil {
		return "", apperr.Wrap(err, apperr.ErrComposition, "render overlay %s", req.Output)
	}
	return req.Output, nil
}

func (t *Tool) overlayArgs(req OverlayRequest, windows []timeline.Window, width int, end float64) []string {
	args := []string{
		"-y",
		"-i", req.Background,
		"-i", req.AvatarA,
		"-i", req.AvatarB,
		"-filter_complex", overlayFilter(windows, width, req.Anchor),
		"-map", "[vout]",
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
	}
	if end > 0 {
		args = append(args, "-t", formatSeconds(end))
	}
	return append(args, req.Output)
}

// overlayFilter builds one overlay per speaker; each is enabled only inside its own
// half-open windows, so the two avatars never show at the same time.
func overlayFilter(windows []timeline.Window, width int, anchor Anchor) string {
	grouped := timeline.BySpeaker(windows)
	x, y := anchor.position()

	var chains []string
	current := "0:v"
	inputs := []struct {
		speaker metadata.Speaker
		index   int
	}{
		{metadata.SpeakerA, 1},
		{metadata.SpeakerB, 2},
	}
	for _, in := range inputs {
		ws := grouped[in.speaker]
		if len(ws) == 0 {
			continue
		}
		label := fmt.Sprintf("av%d", in.index)
		next := fmt.Sprintf("v%d", in.index)
		chains = append(chains,
			fmt.Sprintf("[%d:v]scale=%d:-2,format=rgba[%s]", in.index, width, label),
			fmt.Sprintf("[%s][%s]overlay=x=%s:y=%s:enable='%s'[%s]", current, label, x, y, enableExpr(ws), next),
		)
		current = next
	}

	if current == "0:v" {
		return "[0:v]null[vout]"
	}
	chains = append(chains, fmt.Sprintf("[%s]null[vout]", current))
	return strings.Join(chains, ";")
}

func enableExpr(windows []timeline.Window) string {
	terms := make([]string, 0, len(windows))
	for _, w := range windows {
		terms = append(terms, fmt.Sprintf("gte(t,%s)*lt(t,%s)", formatSeconds(w.Start), formatSeconds(w.End)))
	}
	return strings.Join(terms, "+")
}

// avatarWidth scales the background width and rounds down to an even pixel count.
func avatarWidth(bgWidth int, scale float64) int {
	w := int(float64(bgWidth) * scale)
	w -= w % 2
	if w < 2 {
		w = 2
	}
	return w
}
