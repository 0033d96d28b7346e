package fetch

import (
	"context"
	"sync"
)

// Token identifies one generation of fetch on one stream.
type Token struct {
	stream string
	gen    uint64
}

// Stream returns the stream the token belongs to.
func (t Token) Stream() string { return t.stream }

// Generation returns the token's generation number.
func (t Token) Generation() uint64 { return t.gen }

type streamGen struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Guard issues monotonically increasing generations per stream and answers
// "is this generation still the latest?". Beginning a new generation cancels
// the previous generation's context, so in-flight I/O is actually aborted
// rather than merely ignored.
//
// Purely in-memory: one entry per active stream, removed by Drop when the
// owning view tears down.
type Guard struct {
	mu      sync.Mutex
	streams map[string]*streamGen
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{streams: make(map[string]*streamGen)}
}

// Begin increments and returns the generation for stream, superseding any
// outstanding generation. Safe to call repeatedly without awaiting prior
// completion.
func (g *Guard) Begin(stream string) Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.streams[stream]
	if s == nil {
		s = &streamGen{}
		g.streams[stream] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return Token{stream: stream, gen: s.gen}
}

// IsCurrent reports whether t is still the latest generation for its stream.
// Tokens for dropped streams are never current.
func (g *Guard) IsCurrent(t Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.streams[t.stream]
	return s != nil && s.gen == t.gen
}

// SignalFor returns the current generation's cancellation context for
// stream. The context is cancelled the instant a newer generation begins or
// the stream is dropped. Streams with no begun generation get an
// already-cancelled context.
func (g *Guard) SignalFor(stream string) context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.streams[stream]
	if s == nil || s.ctx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.ctx
}

// Current returns the latest generation number for stream, zero if none.
func (g *Guard) Current(stream string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.streams[stream]
	if s == nil {
		return 0
	}
	return s.gen
}

// Supersede invalidates the current generation without beginning a new one:
// the outstanding context is cancelled and the counter bumped so in-flight
// results fail the IsCurrent check. Used when a stream is disabled.
func (g *Guard) Supersede(stream string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.streams[stream]
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.ctx = nil
	}
	s.gen++
}

// Drop cancels any outstanding generation and removes the stream's entry so
// the counter does not leak after the owning view unmounts.
func (g *Guard) Drop(stream string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.streams[stream]
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	delete(g.streams, stream)
}
