package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/pkg/file"
)

// MergeAudio concatenates clips in order, without gaps, into output re-encoded at the
// configured sample rate. Every clip is checked before ffmpeg runs.
func (t *Tool) MergeAudio(ctx context.Context, clips []string, output string) (string, error) {
	if len(clips) == 0 {
		return "", apperr.New(apperr.ErrEmptyInput, "no audio clips to merge")
	}
	for i, clip := range clips {
		if !file.IsRegularFile(clip) {
			return "", apperr.New(apperr.ErrFileNotFound, "audio clip %s not found", clip).
				WithContext("index", i)
		}
	}

	if err := file.EnsureParent(output); err != nil {
		return "", apperr.Wrap(err, apperr.ErrComposition, "prepare merged audio output")
	}

	if err := t.ffmpeg(ctx, output, t.mergeArgs(clips, output)); err != nil {
		return "", apperr.Wrap(err, apperr.ErrComposition, "merge %d clips into %s", len(clips), output)
	}
	return output, nil
}

func (t *Tool) mergeArgs(clips []string, output string) []string {
	args := []string{"-y"}
	var inputs strings.Builder
	for i, clip := range clips {
		args = append(args, "-i", clip)
		fmt.Fprintf(&inputs, "[%d:a]", i)
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[aout]", inputs.String(), len(clips))
	return append(args,
		"-filter_complex", filter,
		"-map", "[aout]",
		"-ar", strconv.Itoa(t.sampleRate),
		output,
	)
}
