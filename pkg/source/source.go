package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

// Kind identifies a harvester implementation.
type Kind string

const (
	KindNitter  Kind = "nitter"
	KindJSONDir Kind = "jsondir"
)

// Harvester returns the newest posts of one source account, newest first.
// Engagement metrics the upstream cannot see are left unknown.
type Harvester interface {
	Name() Kind
	Harvest(ctx context.Context, account string, limit int) ([]candidate.Raw, error)
}

// Options configures New.
type Options struct {
	NitterURL string
	JSONDir   string
	UserAgent string
}

// New creates the harvester for kind.
func New(kind Kind, opts Options) (Harvester, error) {
	switch kind {
	case KindNitter, "":
		return NewNitter(opts.NitterURL, opts.UserAgent), nil
	case KindJSONDir:
		if opts.JSONDir == "" {
			return nil, fmt.Errorf("jsondir harvester: directory not set")
		}
		return NewJSONDir(opts.JSONDir), nil
	default:
		return nil, fmt.Errorf("unknown harvester kind %q", kind)
	}
}

// AllKinds returns all known harvester kinds.
func AllKinds() []Kind {
	return []Kind{KindNitter, KindJSONDir}
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
