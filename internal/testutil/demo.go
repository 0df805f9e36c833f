package testutil

import "github.com/roach88/ms05probe/internal/model"

// Oids and property ids of the demo device model.
const (
	ChannelsOID = 10
	GainOID     = 11
	NestedOID   = 12
	MeterOID    = 13
)

var (
	ClassGainControl = model.ClassID{1, 2, 0, 1}
	ClassMeter       = model.ClassID{1, 2, 0, 2}

	PropGain   = model.PropertyID{Level: 3, Index: 1}
	PropLabel  = model.PropertyID{Level: 3, Index: 2}
	PropLevel  = model.PropertyID{Level: 3, Index: 1}
	PropOffset = model.PropertyID{Level: 3, Index: 2}

	PropWorkerEnabled = model.PropertyID{Level: 2, Index: 1}
)

// DemoDevice builds this model:
//
//	root (1)
//	├── ClassManager (2)
//	├── DeviceManager (3)
//	└── channels (10, block)
//	    ├── gain (11, GainControl)
//	    └── nested (12, block)
//	        └── meter (13, Meter)
//
// Constrained properties:
//   - gain.gain: property constraint {minimum 0, maximum 10, step 2}
//   - gain.label: property constraint {pattern ^[A-Z]{3}$, maxCharacters 3}
//   - gain.userLabel: runtime constraint {maxCharacters 8}
//   - meter.level: read-only, property constraint ignored; no datatype constraint
//   - meter.offset: datatype constraint via OffsetDb {minimum -20, maximum 20}
func DemoDevice() *FakeDevice {
	d := NewFakeDevice()

	d.AddDatatype(Typedef("OffsetDb", "NcFloat32", false, map[string]any{
		"defaultValue": nil,
		"minimum":      float64(-20),
		"maximum":      float64(20),
		"step":         nil,
	}))

	d.AddClass(Class("GainControl", ClassGainControl,
		Property(PropGain, "gain", "NcFloat32", false, false, false, map[string]any{
			"defaultValue": nil,
			"minimum":      float64(0),
			"maximum":      float64(10),
			"step":         float64(2),
		}),
		Property(PropLabel, "label", "NcString", false, false, false, map[string]any{
			"defaultValue":  nil,
			"pattern":       "^[A-Z]{3}$",
			"maxCharacters": float64(3),
		}),
	))
	d.AddClass(Class("Meter", ClassMeter,
		Property(PropLevel, "level", "NcFloat32", true, false, false, map[string]any{
			"defaultValue": nil,
			"minimum":      float64(-100),
			"maximum":      float64(0),
			"step":         nil,
		}),
		Property(PropOffset, "offset", "OffsetDb", false, false, false, nil),
	))

	d.AddObject(RootOID, ChannelsOID, "channels", model.ClassNcBlock, nil)
	d.AddObject(ChannelsOID, GainOID, "gain", ClassGainControl, map[model.PropertyID]any{
		PropGain:            float64(6),
		PropLabel:           "ABC",
		model.PropUserLabel: "main",
		PropWorkerEnabled:   true,
	})
	d.AddObject(ChannelsOID, NestedOID, "nested", model.ClassNcBlock, nil)
	d.AddObject(NestedOID, MeterOID, "meter", ClassMeter, map[model.PropertyID]any{
		PropLevel:         float64(-12),
		PropOffset:        float64(0),
		PropWorkerEnabled: true,
	})

	d.SetRuntimeConstraints(GainOID, []map[string]any{{
		"propertyId":    map[string]any{"level": float64(1), "index": float64(6)},
		"defaultValue":  nil,
		"maxCharacters": float64(8),
		"pattern":       nil,
	}})

	return d
}
