package freshness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

func TestBucketBoundaries(t *testing.T) {
	g := NewGate(DefaultTable())

	tests := []struct {
		age   int
		likes int64
		pass  bool
	}{
		{0, 25, true},
		{0, 24, false},
		{29, 25, true},
		{30, 25, true},
		{30, 24, false},
		{31, 25, false},
		{31, 75, true},
		{89, 75, true},
		{90, 75, true},
		{90, 74, false},
		{91, 75, false},
		{91, 150, true},
		{179, 150, true},
		{180, 150, true},
		{180, 149, false},
		{181, 150, false},
		{181, 2500, true},
		{181, 2499, false},
		{10_000, 2500, true},
	}
	for _, tt := range tests {
		d := g.Evaluate(candidate.Known(tt.likes), tt.age, true, 0)
		assert.Equal(t, tt.pass, d.Pass, "age=%d likes=%d", tt.age, tt.likes)
		assert.Equal(t, NoteNone, d.Note)
	}
}

func TestUnknownLikesBypass(t *testing.T) {
	d := NewGate(DefaultTable()).Evaluate(candidate.Unknown(), 500, true, 0)
	assert.True(t, d.Pass)
	assert.Equal(t, NoteMetricsUnknown, d.Note)
}

func TestUnknownAgeBypass(t *testing.T) {
	d := NewGate(DefaultTable()).Evaluate(candidate.Known(1), 0, false, 0)
	assert.True(t, d.Pass)
	assert.Equal(t, NoteAgeUnknown, d.Note)
}

func TestKnownZeroLikesIsNotUnknown(t *testing.T) {
	d := NewGate(DefaultTable()).Evaluate(candidate.Known(0), 5, true, 0)
	assert.False(t, d.Pass)
	assert.Equal(t, int64(25), d.MinLikes)
}

func TestCheckUsesCandidate(t *testing.T) {
	c := candidate.Candidate{Likes: candidate.Known(600), AgeMinutes: 20, AgeKnown: true, Velocity: 30}
	d := NewGate(Table{}).Check(c)
	assert.True(t, d.Pass)
	assert.InDelta(t, 30.0, d.Velocity, 1e-9)
}

func TestCustomTable(t *testing.T) {
	g := NewGate(Table{Buckets: []Bucket{{MaxAgeMinutes: 60, MinLikes: 10}}, OlderMinLikes: 100})
	assert.True(t, g.Evaluate(candidate.Known(10), 60, true, 0).Pass)
	assert.False(t, g.Evaluate(candidate.Known(10), 61, true, 0).Pass)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultTable().Validate())
	assert.Error(t, Table{}.Validate())
	assert.Error(t, Table{Buckets: []Bucket{{30, 10}, {30, 20}}}.Validate())
	assert.Error(t, Table{Buckets: []Bucket{{30, -1}}}.Validate())
	assert.Error(t, Table{Buckets: []Bucket{{30, 1}}, OlderMinLikes: -5}.Validate())
}
