package mutexwatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHereCapturesCaller(t *testing.T) {
	loc := Here()
	assert.Contains(t, loc.File, "location_test.go")
	assert.Greater(t, loc.Line, 0)
}

func TestLocationRender(t *testing.T) {
	loc := Location{File: "/home/dev/project/internal/server.go", Line: 120}
	assert.Equal(t, "/home/dev/project/internal/server.go:120", loc.Render(false))
	assert.Equal(t, "server.go:120", loc.Render(true))
	assert.Equal(t, loc.Render(false), loc.String())
}

func TestLocationDefaultExitMarker(t *testing.T) {
	assert.Equal(t, "Guard.Close", defaultExitLocation.Render(true))
	assert.Equal(t, "Guard.Close", defaultExitLocation.Render(false))
	assert.False(t, defaultExitLocation.IsZero())
	assert.True(t, Location{}.IsZero())
}
