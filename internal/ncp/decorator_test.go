package ncp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/testutil"
)

type countingClient struct {
	*testutil.FakeDevice
	classCalls int
}

func (c *countingClient) GetControlClass(ctx context.Context, oid int, classID model.ClassID, inherited bool) (model.Descriptor, error) {
	c.classCalls++
	return c.FakeDevice.GetControlClass(ctx, oid, classID, inherited)
}

func TestCachedClient_MemoizesControlClass(t *testing.T) {
	inner := &countingClient{FakeDevice: testutil.DemoDevice()}
	c, err := ncp.NewCachedClient(inner, 0)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := c.GetControlClass(ctx, testutil.ClassManagerOID, testutil.ClassGainControl, true)
		require.NoError(t, err)
		assert.Equal(t, "GainControl", d["name"])
	}
	assert.Equal(t, 1, inner.classCalls)

	// Different includeInherited is a different entry.
	_, err = c.GetControlClass(ctx, testutil.ClassManagerOID, testutil.ClassGainControl, false)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.classCalls)

	// Errors are not cached.
	_, err = c.GetControlClass(ctx, testutil.ClassManagerOID, model.ClassID{9, 9}, true)
	require.Error(t, err)
	_, err = c.GetControlClass(ctx, testutil.ClassManagerOID, model.ClassID{9, 9}, true)
	require.Error(t, err)
	assert.Equal(t, 4, inner.classCalls)

	require.NoError(t, c.Close())
	_, err = c.GetControlClass(ctx, testutil.ClassManagerOID, testutil.ClassGainControl, true)
	require.NoError(t, err)
	assert.Equal(t, 5, inner.classCalls)
}

type memoryRecorder struct {
	exchanges []ncp.Exchange
	fail      bool
}

func (r *memoryRecorder) RecordExchange(ctx context.Context, ex ncp.Exchange) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.exchanges = append(r.exchanges, ex)
	return nil
}

func TestRecordingClient(t *testing.T) {
	rec := &memoryRecorder{}
	c := ncp.NewRecordingClient(testutil.DemoDevice(), rec, testutil.NewDeterministicClock(), nil)
	ctx := context.Background()

	_, err := c.GetProperty(ctx, testutil.GainOID, testutil.PropGain)
	require.NoError(t, err)
	err = c.SetProperty(ctx, testutil.GainOID, testutil.PropGain, float64(11))
	require.Error(t, err)
	_, err = c.GetMemberDescriptors(ctx, testutil.RootOID, false)
	require.NoError(t, err)
	_, err = c.GetControlClass(ctx, testutil.ClassManagerOID, model.ClassNcBlock, false)
	require.NoError(t, err)

	require.Len(t, rec.exchanges, 4)

	get := rec.exchanges[0]
	assert.Equal(t, int64(1), get.Seq)
	assert.Equal(t, "Get", get.Method)
	assert.Equal(t, ncp.StatusOK, get.Status)
	assert.Equal(t, float64(6), get.Value)

	set := rec.exchanges[1]
	assert.Equal(t, int64(2), set.Seq)
	assert.Equal(t, "Set", set.Method)
	assert.Equal(t, ncp.StatusParameterError, set.Status)
	assert.Equal(t, "above maximum", set.Error)
	assert.Equal(t, float64(11), set.Arguments["value"])

	assert.Equal(t, 3, rec.exchanges[2].Value)
	assert.Equal(t, "NcBlock", rec.exchanges[3].Value)
}

func TestRecordingClient_RecorderFailureIsIgnored(t *testing.T) {
	rec := &memoryRecorder{fail: true}
	c := ncp.NewRecordingClient(testutil.DemoDevice(), rec, nil, nil)

	v, err := c.GetProperty(context.Background(), testutil.GainOID, testutil.PropGain)
	require.NoError(t, err)
	assert.Equal(t, float64(6), v)
}
