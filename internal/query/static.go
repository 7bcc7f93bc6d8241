package query

import (
	"context"
	"sync"
)

// StaticLookup answers from a fixed table and records every address it was asked for.
type StaticLookup struct {
	mu      sync.Mutex
	isps    map[string]string
	calls   []string
	Default string
}

// NewStaticLookup returns a lookup backed by isps. Unlisted addresses yield UnknownISP.
func NewStaticLookup(isps map[string]string) *StaticLookup {
	return &StaticLookup{isps: isps, Default: UnknownISP}
}

func (s *StaticLookup) LookupISP(_ context.Context, ip string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ip)
	if isp, ok := s.isps[ip]; ok {
		return isp
	}
	return s.Default
}

// Calls returns the addresses looked up so far, in call order.
func (s *StaticLookup) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// DisabledLookup is used when lookups are turned off in the config.
type DisabledLookup struct{}

func (DisabledLookup) LookupISP(context.Context, string) string {
	return LookupDisabled
}
