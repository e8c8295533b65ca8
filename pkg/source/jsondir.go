package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

// JSONDir reads candidate batches that an external browser scraper writes to
// <dir>/<account>.json. A file holds either a JSON array of posts or an object
// with a "posts" array. Metrics given as null stay unknown.
type JSONDir struct {
	dir string
}

// NewJSONDir creates a harvester rooted at dir.
func NewJSONDir(dir string) *JSONDir {
	return &JSONDir{dir: dir}
}

func (j *JSONDir) Name() Kind { return KindJSONDir }

type jsonBatch struct {
	Account string          `json:"account"`
	Posts   []candidate.Raw `json:"posts"`
}

func (j *JSONDir) Harvest(ctx context.Context, account string, limit int) ([]candidate.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account = candidate.NormalizeHandle(account)
	if account == "" || filepath.Base(account) != account {
		return nil, fmt.Errorf("jsondir: invalid account %q", account)
	}

	path := filepath.Join(j.dir, account+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch @%s: %w", account, err)
	}

	posts, err := decodeBatch(data)
	if err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", path, err)
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func decodeBatch(data []byte) ([]candidate.Raw, error) {
	var posts []candidate.Raw
	if err := json.Unmarshal(data, &posts); err == nil {
		return posts, nil
	}
	var batch jsonBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return batch.Posts, nil
}
