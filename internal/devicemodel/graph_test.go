package devicemodel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/devicemodel"
	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/testutil"
)

func buildDemo(t *testing.T, dev *testutil.FakeDevice) *devicemodel.Graph {
	t.Helper()
	g, err := devicemodel.NewBuilder(dev, nil).BuildGraph(context.Background())
	require.NoError(t, err)
	require.NotNil(t, g)
	return g
}

func roles(nodes []devicemodel.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Base().Role
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		classID model.ClassID
		want    devicemodel.Kind
	}{
		{"NcObject", model.ClassNcObject, devicemodel.KindObject},
		{"NcBlock", model.ClassNcBlock, devicemodel.KindBlock},
		{"derived block", model.ClassID{1, 1, 0, 4}, devicemodel.KindBlock},
		{"NcManager", model.ClassNcManager, devicemodel.KindObject},
		{"NcDeviceManager", model.ClassNcDeviceManager, devicemodel.KindObject},
		{"NcClassManager", model.ClassNcClassManager, devicemodel.KindClassManager},
		{"derived class manager", model.ClassID{1, 3, 2, 0, 1}, devicemodel.KindClassManager},
		{"worker", model.ClassID{1, 2, 0, 1}, devicemodel.KindObject},
		{"empty", model.ClassID{}, devicemodel.KindObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, devicemodel.Classify(tt.classID))
		})
	}
}

func TestBuildGraph_Demo(t *testing.T) {
	g := buildDemo(t, testutil.DemoDevice())

	root := g.Root
	assert.Equal(t, "root", root.Role)
	assert.Equal(t, model.RootBlockOID, root.OID)
	assert.Equal(t, []string{"ClassManager", "DeviceManager", "channels"}, roles(root.Children))
	assert.Len(t, root.MemberDescriptors, 3)

	channels, ok := root.Children[2].(*devicemodel.Block)
	require.True(t, ok)
	assert.Equal(t, []string{"gain", "nested"}, roles(channels.Children))

	nested, ok := channels.Children[1].(*devicemodel.Block)
	require.True(t, ok)
	require.Len(t, nested.Children, 1)
	meter := nested.Children[0]
	assert.Equal(t, devicemodel.KindObject, meter.Kind())
	assert.Equal(t, testutil.MeterOID, meter.Base().OID)
	assert.True(t, meter.Base().ClassID.Equal(testutil.ClassMeter))

	cm, err := g.ClassManager()
	require.NoError(t, err)
	assert.Equal(t, testutil.ClassManagerOID, cm.OID)
	assert.Contains(t, cm.ClassDescriptors, "1.2.0.1")
	assert.Contains(t, cm.ClassDescriptors, "1.3.2")
	dt, ok := cm.Datatype("OffsetDb")
	require.True(t, ok)
	assert.Equal(t, "OffsetDb", dt["name"])

	blocks := root.Blocks()
	assert.Equal(t, []string{"root", "channels", "nested"}, []string{blocks[0].Role, blocks[1].Role, blocks[2].Role})
}

func TestFindMembersByClassID(t *testing.T) {
	g := buildDemo(t, testutil.DemoDevice())

	tests := []struct {
		name           string
		classID        model.ClassID
		includeDerived bool
		want           []string
	}{
		{"every object", model.ClassNcObject, true, []string{"ClassManager", "DeviceManager", "channels", "gain", "nested", "meter"}},
		{"exact NcObject", model.ClassNcObject, false, nil},
		{"blocks", model.ClassNcBlock, true, []string{"channels", "nested"}},
		{"workers", model.ClassNcWorker, true, []string{"gain", "meter"}},
		{"exact worker", model.ClassNcWorker, false, nil},
		{"exact gain", testutil.ClassGainControl, false, []string{"gain"}},
		{"managers", model.ClassNcManager, true, []string{"ClassManager", "DeviceManager"}},
		{"unknown", model.ClassID{9}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Root.FindMembersByClassID(tt.classID, tt.includeDerived)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, roles(got))
		})
	}

	// Stable for a fixed graph.
	first := roles(g.Root.FindMembersByClassID(model.ClassNcObject, true))
	second := roles(g.Root.FindMembersByClassID(model.ClassNcObject, true))
	assert.Equal(t, first, second)
}

func TestGraph_Manager(t *testing.T) {
	t.Run("singleton", func(t *testing.T) {
		g := buildDemo(t, testutil.DemoDevice())
		dm, err := g.Manager(model.ClassNcDeviceManager)
		require.NoError(t, err)
		assert.Equal(t, testutil.DeviceManagerOID, dm.Base().OID)
	})

	t.Run("not found", func(t *testing.T) {
		g := buildDemo(t, testutil.DemoDevice())
		_, err := g.Manager(model.ClassID{1, 3, 9})
		assert.ErrorIs(t, err, devicemodel.ErrNotFound)
	})

	t.Run("duplicate", func(t *testing.T) {
		dev := testutil.DemoDevice()
		dev.AddObject(testutil.NestedOID, 20, "SecondDeviceManager", model.ClassNcDeviceManager, nil)
		g := buildDemo(t, dev)

		_, err := g.Manager(model.ClassNcDeviceManager)
		assert.ErrorIs(t, err, devicemodel.ErrSingletonViolation)
		assert.Contains(t, err.Error(), "3, 20")
	})
}

func TestBuild_QueryErrorTrail(t *testing.T) {
	dev := testutil.DemoDevice()
	dev.FailGet(testutil.NestedOID, model.PropBlockMembers, &ncp.DeviceError{
		Status:  ncp.StatusDeviceError,
		Message: "members unavailable",
		OID:     testutil.NestedOID,
		Method:  "Get",
	})

	g, err := devicemodel.NewBuilder(dev, nil).BuildGraph(context.Background())
	require.Error(t, err)
	assert.True(t, devicemodel.IsQueryError(err))

	// The rest of the graph is still built.
	require.NotNil(t, g)
	channels := g.Root.Children[2].(*devicemodel.Block)
	assert.Equal(t, []string{"gain"}, roles(channels.Children))

	var trail devicemodel.QueryErrors
	require.True(t, errors.As(err, &trail))
	require.Len(t, trail, 1)
	assert.Equal(t, "root.channels.nested", trail[0].Path)
	assert.Equal(t, model.PropBlockMembers, trail[0].Property)
	assert.Contains(t, err.Error(), "root.channels.nested: error getting property 2p2")
	assert.Contains(t, err.Error(), "members unavailable")
}

func TestBuild_ClassManagerNeedsBothCatalogs(t *testing.T) {
	dev := testutil.DemoDevice()
	dev.FailGet(testutil.ClassManagerOID, model.PropDatatypes, errors.New("read timeout"))

	g, err := devicemodel.NewBuilder(dev, nil).BuildGraph(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root.ClassManager")

	_, err = g.ClassManager()
	assert.ErrorIs(t, err, devicemodel.ErrNotFound)
}

func TestBuild_RootFailure(t *testing.T) {
	dev := testutil.DemoDevice()
	dev.FailGet(testutil.RootOID, model.PropBlockMembers, ncp.ErrTimeout)

	g, err := devicemodel.NewBuilder(dev, nil).BuildGraph(context.Background())
	assert.Nil(t, g)
	assert.ErrorIs(t, err, ncp.ErrTimeout)
}

func TestBuild_EmptyBlock(t *testing.T) {
	dev := testutil.NewFakeDevice()
	dev.AddObject(testutil.RootOID, 10, "empty", model.ClassNcBlock, nil)

	g := buildDemo(t, dev)
	empty, ok := g.Root.Children[2].(*devicemodel.Block)
	require.True(t, ok)
	assert.Empty(t, empty.Children)
}

func TestBuild_BlockContainingAncestor(t *testing.T) {
	dev := testutil.DemoDevice()
	nested := dev.Object(testutil.NestedOID)
	nested.Members = append(nested.Members, testutil.ChannelsOID)

	g, err := devicemodel.NewBuilder(dev, nil).BuildGraph(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, devicemodel.ErrCycle)
	assert.Contains(t, err.Error(), "root.channels.nested.channels")

	// Everything but the repeated block is still built.
	require.NotNil(t, g)
	channels := g.Root.Children[2].(*devicemodel.Block)
	nestedBlock := channels.Children[1].(*devicemodel.Block)
	assert.Equal(t, []string{"meter"}, roles(nestedBlock.Children))
}

func TestBuild_SharedBlockIsNotACycle(t *testing.T) {
	dev := testutil.DemoDevice()
	spare := dev.AddObject(testutil.RootOID, 20, "spare", model.ClassNcBlock, nil)
	spare.Members = append(spare.Members, testutil.NestedOID)

	g := buildDemo(t, dev)
	require.Len(t, g.Root.Children, 4)
	spareBlock := g.Root.Children[3].(*devicemodel.Block)
	assert.Equal(t, []string{"nested"}, roles(spareBlock.Children))
}
