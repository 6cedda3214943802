package server

import (
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

func mustValue(t *testing.T, x any) *structpb.Value {
	t.Helper()
	v, err := structpb.NewValue(x)
	if err != nil {
		t.Fatalf("NewValue(%v): %v", x, err)
	}
	return v
}

func TestToValue(t *testing.T) {
	point := &types.RecordType{Fields: []types.RecordField{
		{Name: "x", Type: types.Int},
		{Name: "label", Type: &types.OptionType{Element: types.String}},
	}}
	tests := []struct {
		name string
		in   any
		typ  types.RealizedType
		want vm.Value
	}{
		{"int", 42.0, types.Int, int64(42)},
		{"float", 1.5, types.Float, 1.5},
		{"string", "hi", types.String, "hi"},
		{"bool", true, types.Bool, true},
		{"array", []any{1.0, 2.0}, &types.ArrayType{Element: types.Int}, []vm.Value{int64(1), int64(2)}},
		{"none", nil, &types.OptionType{Element: types.Int}, vm.None()},
		{"some", 3.0, &types.OptionType{Element: types.Int}, vm.Some(int64(3))},
		{"ok", map[string]any{"ok": 1.0}, &types.ResultType{Value: types.Int, Error: types.String}, vm.Ok(int64(1))},
		{"err", map[string]any{"error": "bad"}, &types.ResultType{Value: types.Int, Error: types.String}, vm.Err("bad")},
		{"tuple", []any{1.0, "a"}, &types.TupleType{Items: []types.RealizedType{types.Int, types.String}},
			&vm.Record{Fields: []vm.Value{int64(1), "a"}}},
		{"record", map[string]any{"x": 2.0}, point, &vm.Record{Fields: []vm.Value{int64(2), vm.None()}}},
		{"unknown", 2.5, types.Unknown, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toValue(mustValue(t, tt.in), tt.typ)
			if err != nil {
				t.Fatalf("toValue: %v", err)
			}
			if !vm.Equal(got, tt.want) {
				t.Errorf("toValue = %s, want %s", vm.FormatValue(got), vm.FormatValue(tt.want))
			}
		})
	}
}

func TestToValueRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  types.RealizedType
	}{
		{"fractional int", 1.5, types.Int},
		{"string for int", "1", types.Int},
		{"object for array", map[string]any{}, &types.ArrayType{Element: types.Int}},
		{"tuple arity", []any{1.0}, &types.TupleType{Items: []types.RealizedType{types.Int, types.Int}}},
		{"result shape", map[string]any{"value": 1.0}, &types.ResultType{Value: types.Int, Error: types.String}},
		{"missing field", map[string]any{}, &types.RecordType{Fields: []types.RecordField{{Name: "x", Type: types.Int}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := toValue(mustValue(t, tt.in), tt.typ); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFromValue(t *testing.T) {
	tests := []struct {
		name string
		in   vm.Value
		want any
	}{
		{"unit", vm.UnitValue, nil},
		{"int", int64(3), 3.0},
		{"string", "s", "s"},
		{"list", []vm.Value{int64(1), true}, []any{1.0, true}},
		{"record", &vm.Record{Fields: []vm.Value{"a", 2.5}}, []any{"a", 2.5}},
		{"some", vm.Some("x"), "x"},
		{"none", vm.None(), nil},
		{"ok", vm.Ok(int64(1)), map[string]any{"ok": 1.0}},
		{"err", vm.Err("e"), map[string]any{"error": "e"}},
		{"range", vm.Range{From: 1, To: 4}, map[string]any{"from": 1.0, "to": 4.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromValue(tt.in)
			want := mustValue(t, tt.want)
			if !proto.Equal(got, want) {
				t.Errorf("fromValue = %v, want %v", got, want)
			}
		})
	}
}
