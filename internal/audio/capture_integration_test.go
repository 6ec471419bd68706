//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListDevicesIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	devices, err := ListDevices(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, devices)
}

func TestOpenCapturesFromDefaultSourceIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	capture, sel, err := Open(ctx, Preference{})
	require.NoError(t, err)
	require.NotEmpty(t, sel.Device.ID)

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, capture.Stop())
	require.Positive(t, capture.BytesCaptured())
}
