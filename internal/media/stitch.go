package media

import (
	"context"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/pkg/file"
)

// Stitch muxes video's picture with audio as its only audio track. Video length is kept;
// the audio is neither trimmed nor looped.
func (t *Tool) Stitch(ctx context.Context, video, audio, output string) (string, error) {
	for _, in := range []string{video, audio} {
		if !file.IsRegularFile(in) {
			return "", apperr.New(apperr.ErrComposition, "stitch input %s not found", in)
		}
	}
	if err := file.EnsureParent(output); err != nil {
		return "", apperr.Wrap(err, apperr.ErrComposition, "prepare stitched output")
	}

	if err := t.ffmpeg(ctx, output, t.stitchArgs(video, audio, output)); err != nil {
		return "", apperr.Wrap(err, apperr.ErrComposition, "stitch %s with %s", video, audio).
			WithContext("output", output)
	}
	return output, nil
}

func (t *Tool) stitchArgs(video, audio, output string) []string {
	return []string{
		"-y",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0", // picture from the composed video
		"-map", "1:a:0", // merged speech replaces any existing audio
		"-c:v", "copy",
		"-c:a", "aac",
		"-movflags", "+faststart",
		output,
	}
}
