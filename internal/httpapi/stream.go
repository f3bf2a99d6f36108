package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/pkg/file"
	"github.com/sngdarren/mr-team/pkg/log"
)

const chunkSize = 1 << 20

var errUnsatisfiable = errors.New("range not satisfiable")

// handleVideo serves a finished video, honoring a single bytes range.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	video, ok := s.videos.Get(r.PathValue("video_id"))
	if !ok || !file.IsRegularFile(video.Path) {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}

	f, err := os.Open(video.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stat video")
		return
	}
	size := info.Size()

	h := w.Header()
	h.Set("Content-Type", "video/mp4")
	h.Set("Accept-Ranges", "bytes")

	start, end := int64(0), size-1
	status := http.StatusOK
	if header := r.Header.Get("Range"); header != "" {
		start, end, err = parseRange(header, size)
		if err != nil {
			h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, err.Error())
			return
		}
		status = http.StatusPartialContent
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}

	length := end - start + 1
	if size == 0 {
		length = 0
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	written, err := copyChunks(w, f, start, length)
	metrics.BytesServed.Add(float64(written))
	if err != nil {
		log.Debug("Streaming video %s stopped after %d bytes: %v", video.ID, written, err)
	}
}

// parseRange reads a single "bytes=start-end" range. A missing start means 0 and a
// missing end means the last byte; end is clamped to the file.
func parseRange(header string, size int64) (int64, int64, error) {
	ranges, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(ranges, ",") {
		return 0, 0, errUnsatisfiable
	}
	startStr, endStr, ok := strings.Cut(ranges, "-")
	if !ok {
		return 0, 0, errUnsatisfiable
	}

	start, end := int64(0), size-1
	var err error
	if s := strings.TrimSpace(startStr); s != "" {
		if start, err = strconv.ParseInt(s, 10, 64); err != nil || start < 0 {
			return 0, 0, errUnsatisfiable
		}
	}
	if e := strings.TrimSpace(endStr); e != "" {
		if end, err = strconv.ParseInt(e, 10, 64); err != nil || end < 0 {
			return 0, 0, errUnsatisfiable
		}
	}

	if start >= size || end < start {
		return 0, 0, errUnsatisfiable
	}
	if end > size-1 {
		end = size - 1
	}
	return start, end, nil
}

// copyChunks writes length bytes of f from offset in fixed-size chunks.
func copyChunks(w io.Writer, f io.ReaderAt, offset, length int64) (int64, error) {
	buf := make([]byte, min(length, chunkSize))
	var written int64
	for written < length {
		n := min(int64(len(buf)), length-written)
		read, err := f.ReadAt(buf[:n], offset+written)
		if read > 0 {
			wn, werr := w.Write(buf[:read])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && written == length {
				return written, nil
			}
			return written, err
		}
	}
	return written, nil
}
