package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	p := New()

	assert.Equal(t, "auto", p.QueueType())
	assert.Empty(t, p.ServerURI())
	assert.Equal(t, 0, p.LocalPoolSize())
	assert.Equal(t, "info", p.LogLevel())
}

func TestToolOverride(t *testing.T) {
	p := New()

	assert.Equal(t, "sbatch", p.Tool("sbatch"), "unset tools resolve to the bare name")

	p.SetTool("sbatch", "/opt/slurm/bin/sbatch")
	assert.Equal(t, "/opt/slurm/bin/sbatch", p.Tool("sbatch"))
	assert.Equal(t, "squeue", p.Tool("squeue"), "other tools are unaffected")
}

func TestSetQueueType(t *testing.T) {
	p := New()
	p.SetQueueType("slurm")
	assert.Equal(t, "slurm", p.QueueType())
}
