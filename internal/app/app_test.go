package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClose_RunsCleanupsInReverseOrder(t *testing.T) {
	t.Parallel()
	a := &App{}

	var order []int
	a.onClose(func() { order = append(order, 1) })
	a.onClose(func() { order = append(order, 2) })
	a.onClose(func() { order = append(order, 3) })

	require.NoError(t, a.Close())
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	a := &App{}

	calls := 0
	a.onClose(func() { calls++ })

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, calls, "cleanups run once")
}

func TestClose_EmptyApp(t *testing.T) {
	t.Parallel()
	require.NoError(t, (&App{}).Close())
}
