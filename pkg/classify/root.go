// Package classify holds the admission predicates applied before scoring.
package classify

import "github.com/elonfeng/replyradar/pkg/candidate"

// IsRoot reports whether c is an origin post rather than a reply, repost or
// thread continuation. The first matching rule wins.
func IsRoot(c candidate.Candidate) bool {
	if c.RepliedToID != "" {
		return false
	}
	if c.IsRepost {
		return false
	}
	if root := c.ConversationRootID; root != "" && root != c.ID && root != candidate.UnknownConversation {
		return false
	}
	return c.IsOrigin && !c.IsReply
}
