package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets through keep of every window calls. A zero window lets
// everything through.
type sampler struct {
	keep   atomic.Int64
	window atomic.Int64
	seen   atomic.Int64
}

func newSampler(keep, window int) *sampler {
	s := &sampler{}
	s.Set(keep, window)
	return s
}

func (s *sampler) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		keep, window = 0, 0
	}
	s.keep.Store(int64(min(keep, window)))
	s.window.Store(int64(window))
	s.seen.Store(0)
}

func (s *sampler) Allow() bool {
	window := s.window.Load()
	if window <= 0 {
		return true
	}
	n := (s.seen.Add(1) - 1) % window
	return n < s.keep.Load()
}

// parseRatio reads "1/50" or the shorthand "50". Anything unparsable or
// non-positive yields 0, 0.
func parseRatio(spec string) (keep, window int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		k, err1 := strconv.Atoi(strings.TrimSpace(a))
		w, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return k, w
	}
	if w, err := strconv.Atoi(spec); err == nil && w > 0 {
		return 1, w
	}
	return 0, 0
}
