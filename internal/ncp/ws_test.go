package ncp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/testutil"
)

func openClient(t *testing.T, ws *testutil.WSDevice, timeout time.Duration) *ncp.WSClient {
	t.Helper()
	c := ncp.NewWSClient(timeout, nil)
	require.NoError(t, c.Open(context.Background(), ws.URL()))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWSClient_GetProperty(t *testing.T) {
	ws := testutil.ServeWS(t, testutil.DemoDevice())
	c := openClient(t, ws, time.Second)

	v, err := c.GetProperty(context.Background(), testutil.GainOID, testutil.PropGain)
	require.NoError(t, err)
	assert.Equal(t, float64(6), v)

	role, err := c.GetProperty(context.Background(), testutil.GainOID, model.PropRole)
	require.NoError(t, err)
	assert.Equal(t, "gain", role)
}

func TestWSClient_SetProperty(t *testing.T) {
	dev := testutil.DemoDevice()
	ws := testutil.ServeWS(t, dev)
	c := openClient(t, ws, time.Second)
	ctx := context.Background()

	require.NoError(t, c.SetProperty(ctx, testutil.GainOID, testutil.PropGain, float64(8)))
	assert.Equal(t, float64(8), dev.Value(testutil.GainOID, testutil.PropGain))

	err := c.SetProperty(ctx, testutil.GainOID, testutil.PropGain, float64(12))
	require.Error(t, err)

	var de *ncp.DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ncp.StatusParameterError, de.Status)
	assert.Equal(t, "Set", de.Method)
	assert.Equal(t, testutil.GainOID, de.OID)
	assert.True(t, ncp.IsDeviceError(err))
	assert.Contains(t, ncp.Detail(err), "status 417")
}

func TestWSClient_MemberDescriptorsAndClasses(t *testing.T) {
	ws := testutil.ServeWS(t, testutil.DemoDevice())
	c := openClient(t, ws, time.Second)
	ctx := context.Background()

	members, err := c.GetMemberDescriptors(ctx, testutil.ChannelsOID, false)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "gain", members[0]["role"])
	assert.Equal(t, "nested", members[1]["role"])

	all, err := c.GetMemberDescriptors(ctx, testutil.ChannelsOID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	class, err := c.GetControlClass(ctx, testutil.ClassManagerOID, testutil.ClassGainControl, true)
	require.NoError(t, err)
	assert.Equal(t, "GainControl", class["name"])
	props, ok := class["properties"].([]any)
	require.True(t, ok)
	// 2 own + 1 NcWorker + 8 NcObject
	assert.Len(t, props, 11)
}

func TestWSClient_TimeoutLeavesConnectionUsable(t *testing.T) {
	ws := testutil.ServeWS(t, testutil.DemoDevice())
	ws.Silent[model.MethodGetMemberDescriptors] = true
	c := openClient(t, ws, 100*time.Millisecond)
	ctx := context.Background()

	_, err := c.GetMemberDescriptors(ctx, testutil.RootOID, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ncp.ErrTimeout)

	v, err := c.GetProperty(ctx, testutil.RootOID, model.PropRole)
	require.NoError(t, err)
	assert.Equal(t, "root", v)
}

func TestWSClient_Closed(t *testing.T) {
	c := ncp.NewWSClient(time.Second, nil)

	_, err := c.GetProperty(context.Background(), 1, model.PropRole)
	assert.ErrorIs(t, err, ncp.ErrClosed)

	// Closing a client that was never opened is a no-op.
	assert.NoError(t, c.Close())

	ws := testutil.ServeWS(t, testutil.NewFakeDevice())
	require.NoError(t, c.Open(context.Background(), ws.URL()))
	require.NoError(t, c.Open(context.Background(), ws.URL()))
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	_, err = c.GetProperty(context.Background(), 1, model.PropRole)
	assert.ErrorIs(t, err, ncp.ErrClosed)
}

func TestWSClient_DialFailure(t *testing.T) {
	c := ncp.NewWSClient(time.Second, nil)
	err := c.Open(context.Background(), "ws://127.0.0.1:1/x-nmos/ncp/v1.0")
	assert.Error(t, err)
}
