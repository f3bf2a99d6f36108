package media

import (
	"context"
	"errors"
	"sync"
)

type call struct {
	name string
	args []string
}

// fakeExecutor answers ffprobe from a path-keyed table and records ffmpeg invocations.
type fakeExecutor struct {
	mu       sync.Mutex
	probes   map[string]string
	ffmpegFn func(args []string) error
	calls    []call
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{probes: make(map[string]string)}
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	f.mu.Unlock()

	switch name {
	case "ffprobe":
		out, ok := f.probes[args[len(args)-1]]
		if !ok {
			return "", errors.New("Invalid data found when processing input")
		}
		return out, nil
	case "ffmpeg":
		if f.ffmpegFn != nil {
			return "", f.ffmpegFn(args)
		}
		return "", nil
	}
	return "", errors.New("unexpected command " + name)
}

func (f *fakeExecutor) ffmpegCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == "ffmpeg" {
			out = append(out, c)
		}
	}
	return out
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

const (
	videoProbe  = `{"streams":[{"codec_type":"video","width":1080,"height":1920}],"format":{"duration":"20.000000"}}`
	imageProbe  = `{"streams":[{"codec_type":"video","width":512,"height":512}],"format":{"duration":"0.040000"}}`
	audioProbe  = `{"streams":[{"codec_type":"audio","duration":"2.011000"}],"format":{"duration":"2.011000"}}`
	silentProbe = `{"streams":[],"format":{}}`
)
