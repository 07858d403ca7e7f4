package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v0.3.0"

	v, _, _ := Info()
	assert.Equal(t, "v0.3.0", v)
	assert.Equal(t, "artex v0.3.0 (commit: unknown, built: unknown)", String())
}
