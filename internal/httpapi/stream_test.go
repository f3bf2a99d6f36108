package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngdarren/mr-team/internal/videos"
)

func writeVideo(t *testing.T, f *fixture, id string, size int) []byte {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), id+".mp4")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	require.NoError(t, f.videos.Add(videos.Video{ID: id, Path: path, JobID: "job-1"}))
	return content
}

func getVideo(f *fixture, id, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/videos/"+id, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return f.do(req)
}

func TestServer_VideoWholeFile(t *testing.T) {
	f := newFixture(t)
	content := writeVideo(t, f, "v1", 10000)

	rec := getVideo(f, "v1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "10000", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.True(t, bytes.Equal(content, rec.Body.Bytes()))
}

func TestServer_VideoRanges(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		start, end int
	}{
		{name: "prefix", header: "bytes=0-99", start: 0, end: 99},
		{name: "open end", header: "bytes=9990-", start: 9990, end: 9999},
		{name: "end clamped", header: "bytes=9000-20000", start: 9000, end: 9999},
		{name: "missing start", header: "bytes=-500", start: 0, end: 500},
		{name: "single byte", header: "bytes=42-42", start: 42, end: 42},
		{name: "last byte", header: "bytes=9999-9999", start: 9999, end: 9999},
	}

	f := newFixture(t)
	content := writeVideo(t, f, "v1", 10000)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := getVideo(f, "v1", tt.header)
			require.Equal(t, http.StatusPartialContent, rec.Code)

			length := tt.end - tt.start + 1
			assert.Equal(t, "bytes "+strconv.Itoa(tt.start)+"-"+strconv.Itoa(tt.end)+"/10000", rec.Header().Get("Content-Range"))
			assert.Equal(t, strconv.Itoa(length), rec.Header().Get("Content-Length"))
			assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
			assert.Equal(t, length, rec.Body.Len())
			assert.True(t, bytes.Equal(content[tt.start:tt.end+1], rec.Body.Bytes()))
		})
	}
}

func TestServer_VideoUnsatisfiableRanges(t *testing.T) {
	f := newFixture(t)
	writeVideo(t, f, "v1", 10000)

	for _, header := range []string{
		"bytes=10000-",
		"bytes=20000-30000",
		"bytes=500-100",
		"bytes=0-10,20-30",
		"bytes=abc-",
		"items=0-10",
		"bytes=10",
	} {
		t.Run(header, func(t *testing.T) {
			rec := getVideo(f, "v1", header)
			assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
			assert.Equal(t, "bytes */10000", rec.Header().Get("Content-Range"))
		})
	}
}

func TestServer_VideoNotFound(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, getVideo(f, "unknown", "").Code)

	require.NoError(t, f.videos.Add(videos.Video{ID: "gone", Path: filepath.Join(t.TempDir(), "gone.mp4")}))
	assert.Equal(t, http.StatusNotFound, getVideo(f, "gone", "").Code)
}

func TestServer_VideoLargerThanChunk(t *testing.T) {
	f := newFixture(t)
	size := chunkSize*2 + 12345
	content := writeVideo(t, f, "big", size)

	rec := getVideo(f, "big", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Equal(content, rec.Body.Bytes()))

	rec = getVideo(f, "big", "bytes=1000-"+strconv.Itoa(chunkSize+5000))
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.True(t, bytes.Equal(content[1000:chunkSize+5001], rec.Body.Bytes()))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantErr   bool
	}{
		{header: "bytes=0-", size: 10, wantStart: 0, wantEnd: 9},
		{header: "bytes=-", size: 10, wantStart: 0, wantEnd: 9},
		{header: " bytes=3-4 ", size: 10, wantStart: 3, wantEnd: 4},
		{header: "bytes=3-100", size: 10, wantStart: 3, wantEnd: 9},
		{header: "bytes=10-", size: 10, wantErr: true},
		{header: "bytes=0-0", size: 0, wantErr: true},
		{header: "bytes=-1-2", size: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, err := parseRange(tt.header, tt.size)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUnsatisfiable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
