package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func recurse(depth int) {
	NotCircular()
	if depth > 0 {
		recurse(depth - 1)
	}
}

func TestNotCircular(t *testing.T) {
	require.NotPanics(t, func() { recurse(0) })
	require.Panics(t, func() { recurse(1) })
}

func TestNotNil(t *testing.T) {
	var p *int
	require.Panics(t, func() { NotNil(nil) })
	require.Panics(t, func() { NotNil(p) })
	require.NotPanics(t, func() { NotNil(1) })
}
