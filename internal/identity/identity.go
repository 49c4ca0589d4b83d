// Package identity supplies the client identity (User-Agent) attached to each
// outgoing request.
package identity

import (
	"math/rand/v2"
	"sync"
)

// DefaultUserAgents is the rotation pool used when configuration supplies none.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.169 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.88 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.116 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/77.0.3865.75 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/85.0.4183.121 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/66.0.3359.181 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/81.0.4044.138 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.149 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.130 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Chooser picks the identity string for the next request.
type Chooser interface {
	Choose() string
}

// Pool chooses uniformly at random from a fixed set of identities.
type Pool struct {
	agents []string
}

// NewPool copies agents into a Pool, falling back to DefaultUserAgents.
func NewPool(agents []string) *Pool {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return &Pool{agents: append([]string(nil), agents...)}
}

// Choose returns one identity. Safe for concurrent use.
func (p *Pool) Choose() string {
	return p.agents[rand.IntN(len(p.agents))] // #nosec G404 -- not security sensitive.
}

// Sequence cycles through identities in order. It gives tests a deterministic
// Chooser.
type Sequence struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewSequence returns a Sequence over agents.
func NewSequence(agents ...string) *Sequence {
	return &Sequence{agents: append([]string(nil), agents...)}
}

// Choose returns the next identity, wrapping around at the end.
func (s *Sequence) Choose() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.agents) == 0 {
		return ""
	}
	agent := s.agents[s.next%len(s.agents)]
	s.next++
	return agent
}
