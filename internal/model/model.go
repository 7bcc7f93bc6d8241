package model

// UnknownTeam is the team id assigned to users missing from the user table.
// Every unresolved user maps to this same value.
const UnknownTeam = "Unknown"

// UnknownPseudo is the display name of a user missing from the user table.
const UnknownPseudo = "Unknown"

// TrackingRecord is one row of the tracking export: a user seen from an address.
type TrackingRecord struct {
	IP     string // source address as exported, not canonicalized
	UserID string
	Line   int // line in the source file, 0 when unknown
}

// User is one row of the user export.
type User struct {
	ID     string
	Name   string // pseudonym
	TeamID string
}

// Team is one row of the team export, with its display name already resolved.
type Team struct {
	ID   string
	Name string
}

// SharedIPResult is an address used by accounts from more than one team.
type SharedIPResult struct {
	IP    string
	Users *UserSet // full set observed at the address, not only the conflicting users
}

// EnrichedRow is the display-ready form of a SharedIPResult.
type EnrichedRow struct {
	IP        string
	ISP       string
	Pseudos   []string // first-seen order
	TeamNames []string // unique, sorted
}

// LoadStats holds entity counts for diagnostics.
type LoadStats struct {
	TrackingRows int
	SkippedRows  int
	IPs          int
	Users        int
	Teams        int
}

// UserSet is a set of user ids that remembers insertion order.
type UserSet struct {
	ids  []string
	seen map[string]struct{}
}

// NewUserSet returns a set holding ids, duplicates collapsed.
func NewUserSet(ids ...string) *UserSet {
	s := &UserSet{seen: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *UserSet) Add(id string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is in the set.
func (s *UserSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of distinct ids.
func (s *UserSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns a copy of the ids in insertion order.
func (s *UserSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
