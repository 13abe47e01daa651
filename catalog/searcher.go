package catalog

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"
)

const DefaultDebounce = 600 * time.Millisecond

// SearchFunc runs one catalog search. It should return promptly once ctx
// is cancelled.
type SearchFunc func(ctx context.Context, term string) []Entry

// Searcher turns a stream of typed terms into catalog results: input is
// debounced, repeated terms are dropped, terms of one or two characters are
// ignored and an empty term yields an empty result without a call. A new
// search cancels the one in flight, whose result is then discarded.
type Searcher struct {
	search   SearchFunc
	debounce time.Duration
	deliver  func(term string, results []Entry)

	mu       sync.Mutex
	timer    *time.Timer
	inputGen uint64
	pending  string
	last     string
	hasLast  bool
	seq      uint64
	cancel   context.CancelFunc
	closed   bool

	deliverMu sync.Mutex
}

func NewSearcher(search SearchFunc, debounce time.Duration, deliver func(term string, results []Entry)) *Searcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Searcher{search: search, debounce: debounce, deliver: deliver}
}

// Input records the latest term. deliver must not call Input.
func (s *Searcher) Input(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.inputGen++
	gen := s.inputGen
	s.pending = term
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Searcher) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.inputGen {
		s.mu.Unlock()
		return
	}
	term := s.pending
	if s.hasLast && term == s.last {
		s.mu.Unlock()
		return
	}
	s.last, s.hasLast = term, true
	if n := utf8.RuneCountInString(term); n > 0 && n < 3 {
		s.mu.Unlock()
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		results := []Entry{}
		if term != "" {
			results = s.search(ctx, term)
		}

		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
		s.mu.Lock()
		stale := s.closed || seq != s.seq
		s.mu.Unlock()
		if stale {
			return
		}
		s.deliver(term, results)
	}()
}

// Close stops the timer and cancels any search in flight.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}
