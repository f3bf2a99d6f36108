package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_Probe(t *testing.T) {
	tests := []struct {
		name        string
		mockOutput  string
		expected    Info
		expectError bool
	}{
		{
			name:       "video with audio",
			mockOutput: `{"streams":[{"codec_type":"video","width":1280,"height":720},{"codec_type":"audio"}],"format":{"duration":"31.5"}}`,
			expected:   Info{Width: 1280, Height: 720, Duration: 31.5, HasVideo: true, HasAudio: true},
		},
		{
			name:       "audio duration from stream",
			mockOutput: `{"streams":[{"codec_type":"audio","duration":"4.25"}],"format":{"duration":"N/A"}}`,
			expected:   Info{Duration: 4.25, HasAudio: true},
		},
		{
			name:        "no streams",
			mockOutput:  silentProbe,
			expectError: true,
		},
		{
			name:        "garbage output",
			mockOutput:  "not json",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "in.mp4")
			require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
			fake := newFakeExecutor()
			fake.probes[path] = tt.mockOutput

			info, err := NewTool(WithExecutor(fake)).Probe(context.Background(), path)
			if tt.expectError {
				assert.True(t, apperr.Is(err, apperr.ErrMediaOpen))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, info)
		})
	}
}

// TestTool_DurationWithScriptedFFprobe runs the real executor against a shell script
// standing in for ffprobe.
func TestTool_DurationWithScriptedFFprobe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	binDir := t.TempDir()
	script := "#!/bin/sh\ncat <<'JSON'\n" + audioProbe + "\nJSON\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "ffprobe"), []byte(script), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	clip := filepath.Join(t.TempDir(), "D0_S0_rick.mp3")
	require.NoError(t, os.WriteFile(clip, []byte("id3"), 0o644))

	d, err := NewTool().Duration(context.Background(), clip)
	require.NoError(t, err)
	assert.Equal(t, 2.011, d)
}

func TestTool_DurationRejectsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	fake := newFakeExecutor()
	fake.probes[path] = `{"streams":[{"codec_type":"video","width":10,"height":10}],"format":{}}`

	_, err := NewTool(WithExecutor(fake)).Duration(context.Background(), path)
	assert.True(t, apperr.Is(err, apperr.ErrMediaOpen))
}

func TestParseSeconds(t *testing.T) {
	assert.Equal(t, 0.0, parseSeconds(""))
	assert.Equal(t, 0.0, parseSeconds("N/A"))
	assert.Equal(t, 12.5, parseSeconds("12.500000"))
	assert.Equal(t, "8.9", formatSeconds(8.9))
	assert.Equal(t, "15", formatSeconds(15))
}
