package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAndString(t *testing.T) {
	prev := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = prev })

	info := Get()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, GitSHA, info.GitSHA)
	assert.Contains(t, String(), "argus 1.2.3")
}
