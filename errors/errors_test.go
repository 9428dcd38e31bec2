package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase and kind",
			err:  &Error{Phase: PhaseEmit, Kind: KindPlaceholder},
			want: []string{"[emit]", "placeholder"},
		},
		{
			name: "with path",
			err:  &Error{Phase: PhaseLayout, Kind: KindOverflow, Path: []string{"command-schema", "args"}},
			want: []string{"[layout]", "overflow", "at command-schema.args"},
		},
		{
			name: "with detail",
			err:  &Error{Phase: PhaseScan, Kind: KindDuplicate, Detail: `duplicate command "greet"`},
			want: []string{"[scan]", "duplicate", `duplicate command "greet"`},
		},
		{
			name: "with cause",
			err:  &Error{Phase: PhaseParse, Kind: KindInvalidData, Cause: fmt.Errorf("boom")},
			want: []string{"[parse]", "caused by: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Error() = %q, want substring %q", got, want)
				}
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := Duplicate(PhaseScan, "command", "greet")

	if !stderrors.Is(err, &Error{Phase: PhaseScan, Kind: KindDuplicate}) {
		t.Error("expected match on same phase and kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseScan, Kind: KindNotFound}) {
		t.Error("unexpected match on different kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseVerify, Kind: KindDuplicate}) {
		t.Error("unexpected match on different phase")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(PhaseAssemble, KindInvalidData, cause, "bind section")

	if !stderrors.Is(err, cause) {
		t.Error("expected unwrap to reach cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseWit, KindUnresolved).
		Path("registry", "types").
		Detail("type %s not declared", "command-schema").
		Value("command-schema").
		Build()

	if err.Phase != PhaseWit {
		t.Errorf("Phase = %q, want %q", err.Phase, PhaseWit)
	}
	if err.Kind != KindUnresolved {
		t.Errorf("Kind = %q, want %q", err.Kind, KindUnresolved)
	}
	if len(err.Path) != 2 || err.Path[0] != "registry" {
		t.Errorf("Path = %v", err.Path)
	}
	if err.Detail != "type command-schema not declared" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Value != "command-schema" {
		t.Errorf("Value = %v", err.Value)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		phase    Phase
		kind     Kind
		contains string
	}{
		{
			name:     "InvalidName",
			err:      InvalidName(PhaseScan, "Greet", "[a-z][a-z0-9-]*"),
			phase:    PhaseScan,
			kind:     KindInvalidName,
			contains: `"Greet"`,
		},
		{
			name:     "ShadowedAlias",
			err:      ShadowedAlias("g", "greet", "g"),
			phase:    PhaseIntern,
			kind:     KindShadowedAlias,
			contains: `alias "g"`,
		},
		{
			name:     "Placeholder",
			err:      Placeholder("{{RUN_BODY}}", 0),
			phase:    PhaseEmit,
			kind:     KindPlaceholder,
			contains: "occurs 0 times",
		},
		{
			name:     "NotComponent",
			err:      NotComponent("cmds/greet.component.wasm", "core module magic"),
			phase:    PhaseScan,
			kind:     KindNotComponent,
			contains: "greet.component.wasm",
		},
		{
			name:     "Mismatch",
			err:      Mismatch(PhaseMetadata, "command name", "hello", "greet"),
			phase:    PhaseMetadata,
			kind:     KindMismatch,
			contains: `got "hello"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %q, want %q", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.kind)
			}
			if got := tt.err.Error(); !strings.Contains(got, tt.contains) {
				t.Errorf("Error() = %q, want substring %q", got, tt.contains)
			}
		})
	}
}
