package accel_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/govdec/accel"
)

func TestSharedDeviceHandle(t *testing.T) {
	t.Parallel()

	closed := 0
	h := accel.NewSharedDeviceHandle("device-0", func() { closed++ })
	require.Equal(t, "device-0", h.Value())

	// Two holders: the first release keeps the handle open.
	require.Same(t, h, h.Acquire())
	h.Release()
	require.Equal(t, 0, closed)

	h.Release()
	require.Equal(t, 1, closed)
}

func TestSharedDeviceHandleNilClose(t *testing.T) {
	t.Parallel()

	h := accel.NewSharedDeviceHandle(nil, nil)
	h.Release()
	require.Nil(t, h.Value())
}