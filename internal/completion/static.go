package completion

import (
	"context"
	"io"
	"sync"
)

// StaticGenerator replays fixed fragments. If Err is set, it is returned after
// the fragments instead of io.EOF. Prompts received are recorded for inspection.
type StaticGenerator struct {
	Fragments []string
	Err       error

	mu      sync.Mutex
	prompts []Prompt
}

// Stream returns a stream over g.Fragments.
func (g *StaticGenerator) Stream(ctx context.Context, prompt Prompt) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return &staticStream{ctx: ctx, fragments: g.Fragments, err: g.Err}, nil
}

// Prompts returns the prompts passed to Stream so far.
func (g *StaticGenerator) Prompts() []Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Prompt, len(g.prompts))
	copy(out, g.prompts)
	return out
}

type staticStream struct {
	ctx       context.Context
	fragments []string
	err       error
	pos       int
}

func (s *staticStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *staticStream) Close() error {
	s.pos = len(s.fragments)
	return nil
}
