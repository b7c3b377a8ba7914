package dashboard

import "context"

// slot tracks the one live request of a logical query. Starting a request
// cancels the previous one, and only the latest token may publish a result.
type slot struct {
	seq    uint64
	cancel context.CancelFunc
}

func (s *slot) begin(parent context.Context) (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return ctx, s.seq
}

// finish reports whether token is still current and, if so, releases it.
func (s *slot) finish(token uint64) bool {
	if token != s.seq {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

// abandon cancels whatever is running and invalidates its token.
func (s *slot) abandon() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
}

func (s *slot) busy() bool { return s.cancel != nil }
