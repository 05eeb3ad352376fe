package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets n of every d events through. A zero ratio lets everything through.
type sampler struct {
	ratio atomic.Uint64 // n<<32 | d
	seq   atomic.Uint64
}

func newSampler(n, d int) *sampler {
	s := &sampler{}
	s.Set(n, d)
	return s
}

func (s *sampler) Set(n, d int) {
	if n <= 0 || d <= 0 {
		s.ratio.Store(0)
		return
	}
	n = min(n, d)
	s.ratio.Store(uint64(n)<<32 | uint64(uint32(d)))
	s.seq.Store(0)
}

func (s *sampler) Allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	n, d := r>>32, r&0xffffffff
	return (s.seq.Add(1)-1)%d < n
}

// parseRatio accepts "n/d" or "d" (meaning 1/d). Anything else disables sampling.
func parseRatio(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil && n > 0 && d > 0 {
			return n, d
		}
		return 0, 0
	}
	if d, err := strconv.Atoi(spec); err == nil && d > 0 {
		return 1, d
	}
	return 0, 0
}
