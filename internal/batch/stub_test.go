package batch

import (
	"context"
	"strings"
	"sync"
)

// stubResult is one scripted command outcome.
type stubResult struct {
	code   int
	stdout string
	stderr string
	err    error
}

// stubRunner replays scripted results per command name, honoring the retry
// budget the way the real runner does: attempts are consumed until one
// succeeds or the budget is spent.
type stubRunner struct {
	mu      sync.Mutex
	results map[string][]stubResult
	calls   map[string][][]string // command name -> recorded arg lists
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		results: make(map[string][]stubResult),
		calls:   make(map[string][][]string),
	}
}

func (s *stubRunner) on(name string, results ...stubResult) {
	s.results[name] = append(s.results[name], results...)
}

func (s *stubRunner) Run(ctx context.Context, tries int, name string, args ...string) (int, string, string, error) {
	if tries < 1 {
		tries = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	base := name[strings.LastIndex(name, "/")+1:]
	var last stubResult
	for attempt := 0; attempt < tries; attempt++ {
		s.calls[base] = append(s.calls[base], args)
		queue := s.results[base]
		if len(queue) == 0 {
			last = stubResult{code: -1, err: context.Canceled}
			break
		}
		last = queue[0]
		s.results[base] = queue[1:]
		if last.err == nil && last.code == 0 {
			return last.code, last.stdout, last.stderr, nil
		}
	}
	return last.code, last.stdout, last.stderr, last.err
}

func (s *stubRunner) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls[name])
}

func (s *stubRunner) lastArgs(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.calls[name]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// padField pads one squeue -O value to the fixed column width.
func padField(val string) string {
	if len(val) >= squeueFieldWidth {
		return val[:squeueFieldWidth]
	}
	return val + strings.Repeat(" ", squeueFieldWidth-len(val))
}

// squeueLine renders one fixed-width squeue output line from ten fields.
func squeueLine(fields ...string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(padField(f))
	}
	return b.String()
}

func intPtr(n int) *int { return &n }
