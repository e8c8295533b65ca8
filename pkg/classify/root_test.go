package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

func TestIsRoot(t *testing.T) {
	tests := []struct {
		name string
		c    candidate.Candidate
		want bool
	}{
		{"origin", candidate.Candidate{ID: "1", IsOrigin: true}, true},
		{"replied to", candidate.Candidate{ID: "1", IsOrigin: true, RepliedToID: "7"}, false},
		{"repost", candidate.Candidate{ID: "1", IsOrigin: true, IsRepost: true}, false},
		{"continuation", candidate.Candidate{ID: "1", IsOrigin: true, ConversationRootID: "7"}, false},
		{"own conversation", candidate.Candidate{ID: "1", IsOrigin: true, ConversationRootID: "1"}, true},
		{"unknown conversation", candidate.Candidate{ID: "1", IsOrigin: true, ConversationRootID: candidate.UnknownConversation}, true},
		{"reply flag", candidate.Candidate{ID: "1", IsOrigin: true, IsReply: true}, false},
		{"not origin", candidate.Candidate{ID: "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRoot(tt.c))
		})
	}
}

func TestIsRootAgreesWithNormalizer(t *testing.T) {
	raw := candidate.Raw{PostID: "1", ConversationRootID: "1"}
	assert.True(t, IsRoot(candidate.Normalize(raw, "s", now)))

	raw.IsReply = true
	assert.False(t, IsRoot(candidate.Normalize(raw, "s", now)))
}
