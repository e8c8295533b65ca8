package candidate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeDerivesAgeAndVelocity(t *testing.T) {
	c := Normalize(Raw{
		PostID:       " 123 ",
		AuthorHandle: "@hubermanlab",
		Text:         "  hello world  ",
		Likes:        Known(600),
		PostedAt:     now.Add(-20 * time.Minute).Format(time.RFC3339),
	}, "@seed", now)

	assert.Equal(t, "123", c.ID)
	assert.Equal(t, "hubermanlab", c.Author)
	assert.Equal(t, "seed", c.SourceAccount)
	assert.Equal(t, "hello world", c.Text)
	assert.True(t, c.AgeKnown)
	assert.Equal(t, 20, c.AgeMinutes)
	assert.InDelta(t, 30.0, c.Velocity, 1e-9)
	assert.True(t, c.IsOrigin)
}

func TestNormalizeVelocityFloorsAgeAtTenMinutes(t *testing.T) {
	c := Normalize(Raw{PostID: "1", Likes: Known(50), PostedAt: now.Add(-2 * time.Minute).Format(time.RFC3339)}, "s", now)
	assert.Equal(t, 2, c.AgeMinutes)
	assert.InDelta(t, 5.0, c.Velocity, 1e-9)
}

func TestNormalizeFutureTimestampClampsToZero(t *testing.T) {
	c := Normalize(Raw{PostID: "1", PostedAt: now.Add(5 * time.Minute).Format(time.RFC3339)}, "s", now)
	assert.True(t, c.AgeKnown)
	assert.Equal(t, 0, c.AgeMinutes)
}

func TestNormalizeKeepsUnknownMetricsUnknown(t *testing.T) {
	c := Normalize(Raw{PostID: "1", PostedAt: "not a time"}, "s", now)

	assert.False(t, c.Likes.IsKnown())
	assert.False(t, c.Views.IsKnown())
	assert.False(t, c.AgeKnown)
	assert.False(t, c.MetricsKnown())
	assert.Zero(t, c.Velocity)
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name   string
		raw    Raw
		reply  bool
		origin bool
	}{
		{"plain", Raw{PostID: "1"}, false, true},
		{"reply hint", Raw{PostID: "1", IsReply: true}, true, false},
		{"replied to id", Raw{PostID: "1", RepliedToID: "9"}, true, false},
		{"repost", Raw{PostID: "1", IsRepost: true}, false, false},
		{"continuation", Raw{PostID: "1", ConversationRootID: "9"}, false, false},
		{"own root", Raw{PostID: "1", ConversationRootID: "1"}, false, true},
		{"unknown root", Raw{PostID: "1", ConversationRootID: UnknownConversation}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.raw, "s", now)
			assert.Equal(t, tt.reply, c.IsReply)
			assert.Equal(t, tt.origin, c.IsOrigin)
		})
	}
}

func TestParseDisplay(t *testing.T) {
	tests := map[string]Count{
		"1,234": Known(1234),
		"1.2K":  Known(1200),
		"3M":    Known(3_000_000),
		"0":     Known(0),
		"":      Unknown(),
		"n/a":   Unknown(),
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseDisplay(in), in)
	}
}

func TestRawDecodesNullableMetrics(t *testing.T) {
	var r Raw
	require.NoError(t, json.Unmarshal([]byte(`{"post_id":"1","likes":null,"views":"2.5K","replies":0}`), &r))

	assert.False(t, r.Likes.IsKnown())
	assert.Equal(t, Known(2500), r.Views)
	assert.Equal(t, Known(0), r.Replies)
	assert.False(t, r.Reposts.IsKnown())
}
