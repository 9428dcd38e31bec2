package registry

import "testing"

func TestArgSchemaLayout(t *testing.T) {
	l := NewLayouts()
	if l.ArgSchema.Size != 124 {
		t.Errorf("arg-schema size = %d, want 124", l.ArgSchema.Size)
	}
	wantOffsets := map[string]uint32{
		"name":            0,
		"short":           8,
		"long":            20,
		"help":            32,
		"required":        44,
		"default-value":   48,
		"env":             60,
		"value-name":      72,
		"takes-value":     84,
		"multiple":        85,
		"value-type":      88,
		"possible-values": 96,
		"conflicts-with":  104,
		"requires":        112,
		"hidden":          120,
	}
	for name, want := range wantOffsets {
		if got := l.ArgSchema.Offset(name); got != want {
			t.Errorf("arg-schema offset of %s = %d, want %d", name, got, want)
		}
	}
}

func TestCommandSchemaLayout(t *testing.T) {
	l := NewLayouts()
	if l.CommandSchema.Size != 72 {
		t.Errorf("command-schema size = %d, want 72", l.CommandSchema.Size)
	}
	wantOffsets := map[string]uint32{
		"name":        0,
		"summary":     8,
		"usage":       16,
		"aliases":     24,
		"version":     32,
		"hidden":      40,
		"description": 44,
		"examples":    56,
		"args":        64,
	}
	for name, want := range wantOffsets {
		if got := l.CommandSchema.Offset(name); got != want {
			t.Errorf("command-schema offset of %s = %d, want %d", name, got, want)
		}
	}
}

func TestAppMetaLayout(t *testing.T) {
	l := NewLayouts()
	if l.AppMeta.Size != 24 {
		t.Errorf("app-meta size = %d, want 24", l.AppMeta.Size)
	}
	for i, name := range []string{"name", "version", "description"} {
		want := uint32(i * 8)
		if got := l.AppMeta.Offset(name); got != want {
			t.Errorf("app-meta offset of %s = %d, want %d", name, got, want)
		}
	}
}

func TestRunResultGeometry(t *testing.T) {
	l := NewLayouts()
	if l.RunResultSize != 16 {
		t.Errorf("run result size = %d, want 16", l.RunResultSize)
	}
	if l.ErrorCaseOffset != 4 {
		t.Errorf("error case offset = %d, want 4", l.ErrorCaseOffset)
	}
	if l.ErrorPayloadOffset != 8 {
		t.Errorf("error payload offset = %d, want 8", l.ErrorPayloadOffset)
	}
}

func TestOptionGeometryTracksCalculator(t *testing.T) {
	if OptionPtrOffset != 4 || OptionLenOffset != 8 {
		t.Errorf("option geometry = %d/%d, want 4/8", OptionPtrOffset, OptionLenOffset)
	}
	// the payload offset plus the string footprint must reproduce the
	// calculator's option<string> size
	opt := newCalculator().layout(optString())
	if OptionPtrOffset+8 != opt.Size {
		t.Errorf("payload at %d inside option of size %d", OptionPtrOffset, opt.Size)
	}
	if OptionLenOffset != OptionPtrOffset+4 {
		t.Errorf("len offset %d not adjacent to ptr offset %d", OptionLenOffset, OptionPtrOffset)
	}
}

func TestOffsetPanicsOnUnknownField(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown field")
		}
	}()
	NewLayouts().AppMeta.Offset("nonexistent")
}

func TestAlignTo(t *testing.T) {
	tests := []struct {
		offset, align, want uint32
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{7, 1, 7},
		{9, 8, 16},
	}
	for _, tt := range tests {
		if got := alignTo(tt.offset, tt.align); got != tt.want {
			t.Errorf("alignTo(%d, %d) = %d, want %d", tt.offset, tt.align, got, tt.want)
		}
	}
}
