package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sngdarren/mr-team/internal/dialogue"
	"github.com/sngdarren/mr-team/internal/media"
	"github.com/sngdarren/mr-team/internal/metadata"
)

type fakeMedia struct {
	mu       sync.Mutex
	overlays []media.OverlayRequest
	merges   [][]string
	stitches []string

	overlayErr func(req media.OverlayRequest) error
	mergeErr   error
	panicOn    string
}

func (f *fakeMedia) Overlay(_ context.Context, req media.OverlayRequest) (string, error) {
	if f.panicOn != "" && strings.Contains(req.Output, f.panicOn) {
		panic("encoder crashed")
	}
	f.mu.Lock()
	f.overlays = append(f.overlays, req)
	f.mu.Unlock()
	if f.overlayErr != nil {
		if err := f.overlayErr(req); err != nil {
			return "", err
		}
	}
	return req.Output, nil
}

func (f *fakeMedia) MergeAudio(_ context.Context, clips []string, output string) (string, error) {
	f.mu.Lock()
	f.merges = append(f.merges, append([]string(nil), clips...))
	f.mu.Unlock()
	if f.mergeErr != nil {
		return "", f.mergeErr
	}
	return output, nil
}

func (f *fakeMedia) Stitch(_ context.Context, video, audio, output string) (string, error) {
	f.mu.Lock()
	f.stitches = append(f.stitches, output)
	f.mu.Unlock()
	return output, nil
}

type fakePublisher struct {
	err error
}

func (p fakePublisher) Publish(_ context.Context, videoID, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "http://minio.local/videos/" + videoID + ".mp4", nil
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("video-%d", n.Add(1))
	}
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(context.Context, string) (string, error) {
	return f.text, f.err
}

// fakeWriter answers one scene per entry of scenes; a scene named "broken" fails.
type fakeWriter struct {
	scenes    []string
	segErr    error
	dialogues map[string][]dialogue.Line
}

func (f fakeWriter) Segment(context.Context, string, string) ([]string, error) {
	return f.scenes, f.segErr
}

func (f fakeWriter) Dialogue(_ context.Context, chunk, _ string) ([]dialogue.Line, error) {
	lines, ok := f.dialogues[chunk]
	if !ok {
		return nil, errors.New("model unavailable")
	}
	return lines, nil
}

func (f fakeWriter) Cast() metadata.Cast {
	return metadata.DefaultCast()
}

// fakeSynth fails every line whose text starts with "fail".
type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, text string, _ metadata.Speaker) ([]byte, error) {
	if strings.HasPrefix(text, "fail") {
		return nil, errors.New("tts rejected the line")
	}
	return []byte("ID3" + text), nil
}

type fixedProber struct {
	seconds float64
}

func (p fixedProber) Duration(context.Context, string) (float64, error) {
	return p.seconds, nil
}
