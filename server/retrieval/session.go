package retrieval

import (
	"context"
	"sync"

	"github.com/hrygo/synapse/plugin/ai/router"
)

// SearchSession serializes the searches of one caller, such as a search box
// where every keystroke issues a query. Starting a search cancels the one in
// flight, and a search overtaken by a newer one is discarded without touching
// history or metrics.
type SearchSession struct {
	o *Orchestrator

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewSession creates a search session.
func (o *Orchestrator) NewSession() *SearchSession {
	return &SearchSession{o: o}
}

// GlobalSearch runs Orchestrator.GlobalSearch within the session. It returns
// ErrSuperseded when a newer search started before this one completed.
func (s *SearchSession) GlobalSearch(ctx context.Context, query string, mode SearchMode) (*SearchOutcome, error) {
	ctx, seq := s.begin(ctx)
	defer s.end(seq)

	return s.o.run(ctx, searchRequest{
		query: query,
		mode:  mode,
		kind:  router.TaskSemanticSearch,
		limit: s.o.resultLimit,
	}, func() bool { return !s.isCurrent(seq) })
}

// Cancel cancels the search in flight, if any.
func (s *SearchSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
}

func (s *SearchSession) begin(ctx context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	ctx, s.cancel = context.WithCancel(ctx)
	return ctx, s.seq
}

func (s *SearchSession) end(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == seq && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *SearchSession) isCurrent(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == seq
}
