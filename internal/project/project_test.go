package project

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-q", "-m", "initial")
	return dir
}

func TestProbeReturnsGitMetadata(t *testing.T) {
	dir := initRepo(t)
	p := NewProber()

	proj := p.Probe(context.Background(), dir)

	assert.NotEmpty(t, proj.Root)
	assert.NotEmpty(t, proj.Commit)
	assert.False(t, proj.Dirty)
}

func TestProbeNonRepoReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	p := NewProber()

	proj := p.Probe(context.Background(), dir)

	assert.Empty(t, proj.Root)
}

func TestProbeCachesPerDirectory(t *testing.T) {
	dir := initRepo(t)
	p := NewProber()

	first := p.Probe(context.Background(), dir)
	second := p.Probe(context.Background(), dir)

	assert.Equal(t, first, second)
}
