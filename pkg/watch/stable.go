package watch

import (
	"context"
	"maps"
	"os"
	"time"
)

type fileState struct {
	size    int64
	modTime int64
}

// WaitStable blocks until none of paths changed size or modification time
// during one interval. Paths that do not exist are ignored, so a file removed
// while waiting does not hold the wait open.
func WaitStable(ctx context.Context, paths []string, interval time.Duration) error {
	prev := snapshot(paths)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		cur := snapshot(paths)
		if maps.Equal(prev, cur) {
			return nil
		}
		prev = cur
		timer.Reset(interval)
	}
}

func snapshot(paths []string) map[string]fileState {
	out := make(map[string]fileState, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		out[p] = fileState{size: info.Size(), modTime: info.ModTime().UnixNano()}
	}
	return out
}
