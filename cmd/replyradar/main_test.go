package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"harvest", "opportunities", "consume", "seeds", "score", "serve", "run"} {
		cmd, _, err := root.Find([]string{name})
		assert.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestCountFlag(t *testing.T) {
	assert.Equal(t, candidate.Unknown(), countFlag(-1))
	assert.Equal(t, candidate.Known(0), countFlag(0))
	assert.Equal(t, candidate.Known(250), countFlag(250))
}
