package registry

import (
	"strings"
	"testing"
)

func TestRenderFlatStream(t *testing.T) {
	a := &Asm{}
	a.storeConst("ret", 8, 42)
	got := a.Render(1)
	want := "  local.get $ret\n  i32.const 42\n  i32.store offset=8\n"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderIfNesting(t *testing.T) {
	a := &Asm{}
	a.I32Const(1)
	a.If()
	a.Return()
	a.End()
	got := a.Render(0)
	want := "i32.const 1\nif\n  return\nend\n"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestStoreOptionAbsentZeroesPayload(t *testing.T) {
	a := &Asm{}
	a.storeOption("arr", 8, Loc{Offset: 99, Len: 7}, false)
	for _, op := range a.Ops() {
		if op.Kind == OpI32Const && op.Val != 0 {
			t.Errorf("absent option stored non-zero immediate %d", op.Val)
		}
	}
	stores := 0
	for _, op := range a.Ops() {
		if op.Kind == OpStore || op.Kind == OpStore8 {
			stores++
		}
	}
	if stores != 3 {
		t.Errorf("absent option emitted %d stores, want tag+ptr+len", stores)
	}
}

func TestStoreOptionPresent(t *testing.T) {
	a := &Asm{}
	a.storeOption("arr", 12, Loc{Offset: 5, Len: 3}, true)
	text := a.Render(0)
	for _, want := range []string{
		"i32.store8 offset=12",
		"i32.store offset=16",
		"i32.store offset=20",
		"i32.const 5",
		"i32.const 3",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered option missing %q:\n%s", want, text)
		}
	}
}

func TestAllocSequence(t *testing.T) {
	a := &Asm{}
	a.alloc(72, "arr")
	text := a.Render(0)
	want := "i32.const 72\ncall $alloc\nlocal.set $arr\n"
	if text != want {
		t.Errorf("alloc = %q, want %q", text, want)
	}
}
