package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBatch(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestJSONDirHarvest(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "hubermanlab.json", `[
		{"post_id": "1", "author_handle": "@hubermanlab", "text": "first", "likes": 600, "views": null, "posted_at": "2026-03-01T11:40:00Z"},
		{"post_id": "2", "author_handle": "hubermanlab", "text": "second", "likes": "1.2K"},
		{"post_id": "3", "author_handle": "hubermanlab", "text": "third"}
	]`)
	writeBatch(t, dir, "peterattiamd.json", `{"account": "peterattiamd", "posts": [{"post_id": "9", "text": "wrapped"}]}`)

	h := NewJSONDir(dir)

	posts, err := h.Harvest(context.Background(), "@hubermanlab", 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	likes, ok := posts[0].Likes.Get()
	require.True(t, ok)
	assert.Equal(t, int64(600), likes)
	assert.False(t, posts[0].Views.IsKnown())

	likes, ok = posts[1].Likes.Get()
	require.True(t, ok)
	assert.Equal(t, int64(1200), likes)

	wrapped, err := h.Harvest(context.Background(), "peterattiamd", 0)
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.Equal(t, "9", wrapped[0].PostID)
}

func TestJSONDirHarvestErrors(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "broken.json", `{not json`)
	h := NewJSONDir(dir)

	_, err := h.Harvest(context.Background(), "absent", 10)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = h.Harvest(context.Background(), "broken", 10)
	assert.Error(t, err)

	_, err = h.Harvest(context.Background(), "../etc", 10)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	h, err := New(KindJSONDir, Options{JSONDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, KindJSONDir, h.Name())

	h, err = New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, KindNitter, h.Name())

	_, err = New(KindJSONDir, Options{})
	assert.Error(t, err)

	_, err = New("carrier-pigeon", Options{})
	assert.Error(t, err)
}
