package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-fabric/internal/sim"
)

func TestParseGrid(t *testing.T) {
	w, h, ok := parseGrid("4x8")
	assert.True(t, ok)
	assert.Equal(t, 4, w)
	assert.Equal(t, 8, h)

	_, _, ok = parseGrid("4*8")
	assert.False(t, ok)
	_, _, ok = parseGrid("ax8")
	assert.False(t, ok)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FABRIC_RACKS", "3")
	t.Setenv("FABRIC_SHELVES", "bad")
	t.Setenv("FABRIC_SHELF", "2X4")

	spec := sim.Spec{Racks: 1, Shelves: 2, Width: 2, Height: 2}
	applyEnvOverrides(&spec)
	assert.Equal(t, 3, spec.Racks)
	assert.Equal(t, 2, spec.Shelves)
	assert.Equal(t, 2, spec.Width)
	assert.Equal(t, 4, spec.Height)
}
