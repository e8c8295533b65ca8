// Package freshness implements the age-bucketed minimum engagement check.
package freshness

import (
	"fmt"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

// Note annotates a decision that bypassed the check.
type Note string

const (
	NoteNone           Note = ""
	NoteMetricsUnknown Note = "metrics_unknown"
	NoteAgeUnknown     Note = "age_unknown"
)

// Bucket requires MinLikes for posts up to MaxAgeMinutes old (inclusive).
type Bucket struct {
	MaxAgeMinutes int   `yaml:"max_age_minutes" json:"max_age_minutes"`
	MinLikes      int64 `yaml:"min_likes" json:"min_likes"`
}

// Table is the ordered bucket list plus the bar for anything older.
type Table struct {
	Buckets       []Bucket `yaml:"buckets" json:"buckets"`
	OlderMinLikes int64    `yaml:"older_min_likes" json:"older_min_likes"`
}

// DefaultTable returns the stock thresholds: 25 likes within 30 minutes, 75
// within 90, 150 within 180 and 2500 beyond.
func DefaultTable() Table {
	return Table{
		Buckets: []Bucket{
			{MaxAgeMinutes: 30, MinLikes: 25},
			{MaxAgeMinutes: 90, MinLikes: 75},
			{MaxAgeMinutes: 180, MinLikes: 150},
		},
		OlderMinLikes: 2500,
	}
}

// Validate checks that buckets are strictly increasing in age.
func (t Table) Validate() error {
	if len(t.Buckets) == 0 {
		return fmt.Errorf("freshness table has no buckets")
	}
	prev := -1
	for i, b := range t.Buckets {
		if b.MaxAgeMinutes <= prev {
			return fmt.Errorf("freshness bucket %d: max age %d not above %d", i, b.MaxAgeMinutes, prev)
		}
		if b.MinLikes < 0 {
			return fmt.Errorf("freshness bucket %d: negative min likes", i)
		}
		prev = b.MaxAgeMinutes
	}
	if t.OlderMinLikes < 0 {
		return fmt.Errorf("freshness older_min_likes is negative")
	}
	return nil
}

// MinLikesFor returns the like requirement for a post of the given age.
func (t Table) MinLikesFor(ageMinutes int) int64 {
	for _, b := range t.Buckets {
		if ageMinutes <= b.MaxAgeMinutes {
			return b.MinLikes
		}
	}
	return t.OlderMinLikes
}

// Decision is the gate outcome.
type Decision struct {
	Pass     bool    `json:"pass"`
	Note     Note    `json:"note,omitempty"`
	MinLikes int64   `json:"min_likes"`
	Velocity float64 `json:"velocity"`
}

// Gate applies a Table.
type Gate struct {
	table Table
}

// NewGate creates a gate. An empty table selects DefaultTable.
func NewGate(t Table) *Gate {
	if len(t.Buckets) == 0 {
		t = DefaultTable()
	}
	return &Gate{table: t}
}

// Table returns the thresholds in use.
func (g *Gate) Table() Table { return g.table }

// Check evaluates c. Unknown likes or an unknown age bypass the check with a
// note, since missing data is not evidence of low engagement.
func (g *Gate) Check(c candidate.Candidate) Decision {
	return g.Evaluate(c.Likes, c.AgeMinutes, c.AgeKnown, c.Velocity)
}

// Evaluate is Check over the raw inputs.
func (g *Gate) Evaluate(likes candidate.Count, ageMinutes int, ageKnown bool, velocity float64) Decision {
	n, ok := likes.Get()
	if !ok {
		return Decision{Pass: true, Note: NoteMetricsUnknown}
	}
	if !ageKnown {
		return Decision{Pass: true, Note: NoteAgeUnknown}
	}

	need := g.table.MinLikesFor(ageMinutes)
	return Decision{
		Pass:     n >= need,
		MinLikes: need,
		Velocity: velocity,
	}
}
