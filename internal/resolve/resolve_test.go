package resolve_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/constraint"
	"github.com/roach88/ms05probe/internal/devicemodel"
	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/resolve"
	"github.com/roach88/ms05probe/internal/testutil"
)

func resolveAll(t *testing.T, dev *testutil.FakeDevice) ([]resolve.Record, error) {
	t.Helper()
	ctx := context.Background()
	g, err := devicemodel.NewBuilder(dev, nil).BuildGraph(ctx)
	require.NoError(t, err)
	cm, err := g.ClassManager()
	require.NoError(t, err)
	return resolve.New(dev, cm, nil).FindConstrainedProperties(ctx, g.Root)
}

func TestFindConstrainedProperties_Demo(t *testing.T) {
	records, err := resolveAll(t, testutil.DemoDevice())
	require.NoError(t, err)

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		"root: channels: GainControl: gain",
		"root: channels: GainControl: label",
		"root: channels: GainControl: userLabel",
		"root: channels: nested: Meter: offset",
	}, names)

	gain := records[0]
	assert.Equal(t, testutil.GainOID, gain.OID)
	assert.Equal(t, "gain", gain.Role)
	assert.Equal(t, testutil.PropGain, gain.PropertyID)
	_, tier, ok := gain.Select()
	require.True(t, ok)
	assert.Equal(t, constraint.TierProperty, tier)
	assert.Nil(t, gain.Runtime)
	assert.Nil(t, gain.Datatype)

	userLabel := records[2]
	assert.Equal(t, model.PropUserLabel, userLabel.PropertyID)
	raw, tier, ok := userLabel.Select()
	require.True(t, ok)
	assert.Equal(t, constraint.TierRuntime, tier)
	assert.Equal(t, float64(8), raw["maxCharacters"])

	offset := records[3]
	assert.Equal(t, testutil.MeterOID, offset.OID)
	_, tier, ok = offset.Select()
	require.True(t, ok)
	assert.Equal(t, constraint.TierDatatype, tier)
	assert.Equal(t, float64(-20), offset.Datatype["minimum"])
}

func TestFindConstrainedProperties_ReadOnlyPropertyConstraintIgnored(t *testing.T) {
	records, err := resolveAll(t, testutil.DemoDevice())
	require.NoError(t, err)
	for _, r := range records {
		if r.OID == testutil.MeterOID {
			assert.NotEqual(t, testutil.PropLevel, r.PropertyID, "read-only level must not be listed")
		}
	}
}

func TestFindConstrainedProperties_RuntimeAndPropertyBothPresent(t *testing.T) {
	dev := testutil.DemoDevice()
	dev.SetRuntimeConstraints(testutil.GainOID, []map[string]any{{
		"propertyId":   map[string]any{"level": float64(3), "index": float64(1)},
		"defaultValue": nil,
		"minimum":      float64(2),
		"maximum":      float64(8),
		"step":         nil,
	}})

	records, err := resolveAll(t, dev)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	gain := records[0]
	require.Equal(t, testutil.PropGain, gain.PropertyID)
	assert.NotNil(t, gain.Property)
	raw, tier, ok := gain.Select()
	require.True(t, ok)
	assert.Equal(t, constraint.TierRuntime, tier)
	assert.Equal(t, float64(8), raw["maximum"])
}

func TestFindConstrainedProperties_NoConstraints(t *testing.T) {
	records, err := resolveAll(t, testutil.NewFakeDevice())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFindConstrainedProperties_MemberFailureIsSkipped(t *testing.T) {
	dev := testutil.DemoDevice()
	dev.FailGet(testutil.GainOID, model.PropRuntimePropertyConstraints, ncp.ErrTimeout)

	records, err := resolveAll(t, dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, ncp.ErrTimeout)

	var me *resolve.MemberError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "root: channels", me.Path)
	assert.Equal(t, testutil.GainOID, me.OID)

	// The meter in the nested block is still resolved.
	require.Len(t, records, 1)
	assert.Equal(t, "root: channels: nested: Meter: offset", records[0].Name)
}
