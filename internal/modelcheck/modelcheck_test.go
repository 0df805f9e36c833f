package modelcheck_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/modelcheck"
	"github.com/roach88/ms05probe/internal/schema"
	"github.com/roach88/ms05probe/internal/testutil"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

const referenceClass = `{
	"description": "Gain control",
	"classId": [1, 2, 0, 1],
	"name": "GainControl",
	"fixedRole": null,
	"properties": [
		{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false},
		{"name": "label", "typeName": "NcString", "isReadOnly": false}
	]
}`

func TestValidateDescriptor(t *testing.T) {
	tests := []struct {
		name     string
		observed string
		wantErr  string
	}{
		{
			name:     "identical",
			observed: referenceClass,
		},
		{
			name: "reordered list is equal",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"fixedRole": null,
				"properties": [
					{"name": "label", "typeName": "NcString", "isReadOnly": false},
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false}
				]
			}`,
		},
		{
			name: "description text ignored",
			observed: `{
				"description": "Vendor wording",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"fixedRole": null,
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false},
					{"name": "label", "typeName": "NcString", "isReadOnly": false}
				]
			}`,
		},
		{
			name: "missing key",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false},
					{"name": "label", "typeName": "NcString", "isReadOnly": false}
				]
			}`,
			wantErr: "Missing keys [fixedRole]",
		},
		{
			name: "additional key",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"fixedRole": null,
				"vendor": "acme",
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false},
					{"name": "label", "typeName": "NcString", "isReadOnly": false}
				]
			}`,
			wantErr: "Additional keys [vendor]",
		},
		{
			name: "missing and additional",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"role": null,
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false},
					{"name": "label", "typeName": "NcString", "isReadOnly": false}
				]
			}`,
			wantErr: "Additional keys [fixedRole role]",
		},
		{
			name: "class id differs",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 2],
				"name": "GainControl",
				"fixedRole": null,
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false},
					{"name": "label", "typeName": "NcString", "isReadOnly": false}
				]
			}`,
			wantErr: "Unexpected ClassId. Expected: [1 2 0 1] actual: [1 2 0 2]",
		},
		{
			name: "nested scalar differs",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"fixedRole": null,
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": true},
					{"name": "label", "typeName": "NcString", "isReadOnly": false}
				]
			}`,
			wantErr: "properties->gain->isReadOnly->Expected value: false, actual value: true",
		},
		{
			name: "list element missing",
			observed: `{
				"description": "Gain control",
				"classId": [1, 2, 0, 1],
				"name": "GainControl",
				"fixedRole": null,
				"properties": [
					{"name": "gain", "typeName": "NcFloat32", "isReadOnly": false}
				]
			}`,
			wantErr: "properties->Missing keys [label]",
		},
	}

	reference := decode(t, referenceClass)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := modelcheck.ValidateDescriptor(reference, decode(t, tt.observed), "")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var me *modelcheck.MismatchError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateDescriptor_ObjectDescription(t *testing.T) {
	reference := map[string]any{"description": map[string]any{"text": "a"}}
	observed := map[string]any{"description": map[string]any{"text": "b"}}

	err := modelcheck.ValidateDescriptor(reference, observed, "NcFoo: ")
	require.Error(t, err)
	assert.Equal(t, "NcFoo: description->text->Expected value: a, actual value: b", err.Error())
}

func TestValidateDescriptor_ShapeMismatch(t *testing.T) {
	err := modelcheck.ValidateDescriptor(map[string]any{"a": []any{}}, map[string]any{"a": "x"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a->Expected array")

	err = modelcheck.ValidateDescriptor(map[string]any{"a": map[string]any{}}, map[string]any{"a": nil}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a->Expected object")
}

type stubValidator struct {
	err   error
	calls int
}

func (s *stubValidator) Validate(payload any, schema map[string]any) error {
	s.calls++
	return s.err
}

func TestValidateSchema(t *testing.T) {
	t.Run("missing schema", func(t *testing.T) {
		v := &stubValidator{}
		err := modelcheck.ValidateSchema(v, map[string]any{}, nil, "NcFoo: ")
		var se *modelcheck.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "NcFoo: Missing schema. ", err.Error())
		assert.Zero(t, v.calls)
	})

	t.Run("violation", func(t *testing.T) {
		v := &stubValidator{err: errors.New("name: conflicting values")}
		err := modelcheck.ValidateSchema(v, map[string]any{}, map[string]any{}, "")
		require.Error(t, err)
		assert.Equal(t, "Schema validation error: name: conflicting values", err.Error())
	})

	t.Run("unusable schema", func(t *testing.T) {
		v := &stubValidator{err: fmt.Errorf("compile: %w", &schema.CompileError{Message: "unknown type \"nope\""})}
		err := modelcheck.ValidateSchema(v, map[string]any{}, map[string]any{}, "NcFoo: ")
		require.Error(t, err)
		assert.Equal(t, `NcFoo: Schema error: unknown type "nope"`, err.Error())
	})

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, modelcheck.ValidateSchema(&stubValidator{}, map[string]any{}, map[string]any{}, ""))
	})
}

func index(list []model.Descriptor) map[string]model.Descriptor {
	return model.IndexDescriptors(list)
}

func TestValidateModelDefinitions(t *testing.T) {
	ref, err := schema.LoadReference([]string{testutil.StandardReference(t)})
	require.NoError(t, err)

	observed := index(testutil.StandardClasses())
	// A reference class the device does not implement.
	ref.Classes["1.2.9"] = testutil.Class("NcMissing", model.ClassID{1, 2, 9})
	// A device class that departs from its reference.
	broken := testutil.Class("NcWorker", model.ClassNcWorker,
		testutil.Property(model.PropertyID{Level: 2, Index: 1}, "enabled", "NcBoolean", true, false, false, nil),
	)
	observed["1.2"] = roundTrip(t, broken)
	// A device class that fails its schema.
	observed["1.3"] = model.Descriptor{"name": "NcManager"}

	for k, d := range observed {
		observed[k] = roundTrip(t, d)
	}
	for k, d := range ref.Classes {
		ref.Classes[k] = roundTrip(t, d)
	}

	results := modelcheck.ValidateModelDefinitions(schema.NewValidator(), observed, ref.Schemas["NcClassDescriptor"], ref.Classes)
	require.Len(t, results, len(ref.Classes))

	byKey := make(map[string]error, len(results))
	keys := make([]string, len(results))
	for i, r := range results {
		byKey[r.Key] = r.Err
		keys[i] = r.Key
	}
	assert.Equal(t, []string{"1", "1.1", "1.2", "1.2.9", "1.3", "1.3.1", "1.3.2"}, keys)

	assert.NoError(t, byKey["1"])
	assert.NoError(t, byKey["1.1"])
	assert.NoError(t, byKey["1.3.1"])
	assert.NoError(t, byKey["1.3.2"])

	assert.ErrorIs(t, byKey["1.2.9"], modelcheck.ErrNotImplemented)

	var me *modelcheck.MismatchError
	require.ErrorAs(t, byKey["1.2"], &me)
	assert.Equal(t, "properties->enabled->isReadOnly->", me.Context)

	var se *modelcheck.SchemaError
	require.ErrorAs(t, byKey["1.3"], &se)
	assert.Contains(t, se.Message, "Schema validation error")
}

func roundTrip(t *testing.T, d model.Descriptor) model.Descriptor {
	t.Helper()
	data, err := json.Marshal(d)
	require.NoError(t, err)
	var out model.Descriptor
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}
