package model

import (
	"encoding/json"
	"testing"
)

func TestEmptyValue(t *testing.T) {
	tests := []struct {
		kind  FieldKind
		shape ValueShape
		json  string
	}{
		{KindText, ShapeText, `""`},
		{KindNumber, ShapeText, `""`},
		{KindDate, ShapeText, `""`},
		{KindDropdown, ShapeText, `""`},
		{KindFile, ShapeText, `""`},
		{KindCheckbox, ShapeBool, `false`},
		{KindSwitch, ShapeBool, `false`},
		{KindCheckboxGroup, ShapeList, `[]`},
		{KindSection, ShapeNone, `null`},
		{KindButton, ShapeNone, `null`},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			v := EmptyValue(tt.kind)
			if v.Shape() != tt.shape {
				t.Errorf("Shape() = %v, want %v", v.Shape(), tt.shape)
			}
			if !v.IsEmpty() {
				t.Error("IsEmpty() = false, want true")
			}
			b, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.json {
				t.Errorf("json = %s, want %s", b, tt.json)
			}
		})
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name string
		kind FieldKind
		raw  any
		want Value
	}{
		{"string text", KindText, "hello", TextValue("hello")},
		{"number from float", KindNumber, float64(12.5), TextValue("12.5")},
		{"number from int", KindNumber, 7, TextValue("7")},
		{"bool for checkbox", KindCheckbox, true, BoolValue(true)},
		{"string for checkbox", KindCheckbox, "true", BoolValue(false)},
		{"list for group", KindCheckboxGroup, []any{"a", "b"}, ListValue("a", "b")},
		{"mixed list for group", KindCheckboxGroup, []any{"a", 1.0}, ListValue()},
		{"scalar for group", KindCheckboxGroup, "a", ListValue()},
		{"list for text", KindText, []any{"a"}, TextValue("")},
		{"nil text", KindDate, nil, TextValue("")},
		{"section ignores", KindSection, "x", Value{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceValue(tt.kind, tt.raw)
			if !got.Equal(tt.want) {
				t.Errorf("CoerceValue(%s, %v) = %#v, want %#v", tt.kind, tt.raw, got, tt.want)
			}
		})
	}
}

func TestValue_Toggle(t *testing.T) {
	v := ListValue("a")
	v = v.Toggle("b")
	if !v.Contains("a") || !v.Contains("b") {
		t.Fatalf("after add: %v", v.List())
	}
	v = v.Toggle("a")
	if v.Contains("a") || !v.Contains("b") {
		t.Fatalf("after remove: %v", v.List())
	}
	v = v.Toggle("b")
	if !v.IsEmpty() {
		t.Errorf("expected empty list, got %v", v.List())
	}
}

func TestValues_Clone_independent(t *testing.T) {
	orig := Values{"g": ListValue("a")}
	clone := orig.Clone()
	clone["g"] = clone["g"].Toggle("b")
	if orig["g"].Contains("b") {
		t.Error("mutating the clone changed the original")
	}
	got := orig.Interface()
	if l, ok := got["g"].([]string); !ok || len(l) != 1 {
		t.Errorf("Interface() = %#v", got)
	}
}

func TestFieldKind_classification(t *testing.T) {
	for _, k := range AllKinds() {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if FieldKind("rating").Valid() {
		t.Error("unknown kind reported valid")
	}
	if !KindSection.Structural() || !KindButton.Structural() || KindText.Structural() {
		t.Error("structural classification wrong")
	}
	if !KindRadio.HasOptions() || KindText.HasOptions() {
		t.Error("option classification wrong")
	}
	if KindCheckbox.HasPlaceholder() || !KindDropdown.HasPlaceholder() {
		t.Error("placeholder classification wrong")
	}
}

func TestFieldDefinition_slots(t *testing.T) {
	office := FieldDefinition{ID: "f1", Kind: KindDropdown, Label: " office name "}
	if !office.IsOfficeName() {
		t.Error("IsOfficeName() = false, want true")
	}
	if (FieldDefinition{Kind: KindText, Label: "Office Name"}).IsOfficeName() {
		t.Error("text field must not bind the office slot")
	}
	if !(FieldDefinition{ID: "x", Label: "report frequency"}).IsFrequencySlot() {
		t.Error("label match should bind the frequency slot")
	}
}
