package buildconfig

import (
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		raw    string
		want   Value
		wantOK bool
	}{
		{"true", Bool(true), true},
		{"TRUE", Bool(true), true},
		{"1", Bool(true), true},
		{"false", Bool(false), true},
		{"0", Bool(false), true},
		{"hello", String("hello"), true},
		{"2", String("2"), true},
		{`{"a": 1, "b": [true, "x"]}`, Map(map[string]Value{"a": Number(1), "b": List(Bool(true), String("x"))}), true},
		{`[1, 2]`, List(Number(1), Number(2)), true},
		{`{not json}`, String("{not json}"), false},
		{`[`, String("["), true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Coerce(tt.raw)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Coerce(%q) = %s (%s), want %s (%s)", tt.raw, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestParseOption(t *testing.T) {
	key, v, ok := ParseOption("source-mode=copy")
	if key != "source_mode" || !ok {
		t.Fatalf("key = %q, ok = %v", key, ok)
	}
	if s, _ := v.Str(); s != "copy" {
		t.Errorf("value = %s", v)
	}

	key, v, _ = ParseOption("disable-all-patches")
	if key != "disable_all_patches" {
		t.Errorf("key = %q", key)
	}
	if b, ok := v.Bool(); !ok || !b {
		t.Errorf("bare key should be true, got %s", v)
	}

	key, v, _ = ParseOption("buildgraph_args=-set:A=B")
	if s, _ := v.Str(); key != "buildgraph_args" || s != "-set:A=B" {
		t.Errorf("only the first = splits: %q=%s", key, v)
	}
}

func TestValueInterface(t *testing.T) {
	v := Map(map[string]Value{"ddc": Bool(true), "n": Number(2.5), "l": List(String("a"))})
	m, ok := v.Interface().(map[string]any)
	if !ok {
		t.Fatalf("Interface() = %T", v.Interface())
	}
	if m["ddc"] != true || m["n"] != 2.5 {
		t.Errorf("unexpected map %v", m)
	}
	if l, ok := m["l"].([]any); !ok || l[0] != "a" {
		t.Errorf("unexpected list %v", m["l"])
	}
	if v.String() != `{"ddc":true,"l":["a"],"n":2.5}` {
		t.Errorf("String() = %s", v.String())
	}
}

func TestValueCopies(t *testing.T) {
	inner := map[string]Value{"a": Bool(true)}
	v := Map(inner)
	inner["a"] = Bool(false)
	got, _ := v.Map()
	if b, _ := got["a"].Bool(); !b {
		t.Error("Map() aliased its input")
	}
	got["a"] = Bool(false)
	again, _ := v.Map()
	if b, _ := again["a"].Bool(); !b {
		t.Error("Map() returned internal storage")
	}
}
