package registry

import (
	"encoding/json"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/component"
	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/wasm"
	"github.com/wippyai/wacli/wat"
)

// assemble compiles the emitted text, binds the interface metadata into
// the core module, and wraps the result as a component. The metadata
// travels twice: as a custom section on the module itself and as a
// component-level section for the composer. A parse failure keeps the
// generated text on the error so the offending output can be inspected.
func assemble(watText string, meta *Meta) ([]byte, error) {
	core, err := wat.Compile(watText)
	if err != nil {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidData).
			Detail("compile generated module text").
			Value(watText).
			Cause(err).
			Build()
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInvalidData, err, "encode registry metadata")
	}

	core, err = wasm.AppendCustom(core, wacli.RegistrySection, payload)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInvalidData, err, "bind registry metadata")
	}

	artifact, err := component.Wrap(core, wacli.RegistrySection, payload)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInvalidData, err, "wrap component")
	}
	return artifact, nil
}
