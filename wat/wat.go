package wat

import (
	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/wat/internal/encoder"
	"github.com/wippyai/wacli/wat/internal/parser"
	"github.com/wippyai/wacli/wat/internal/token"
)

// Compile translates WAT source text into a core module binary.
func Compile(source string) ([]byte, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		return nil, errors.ParseFailed("WAT tokens", err)
	}
	mod, err := parser.Parse(tokens)
	if err != nil {
		return nil, errors.ParseFailed("WAT module", err)
	}
	bin, err := encoder.Encode(mod)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInvalidData, err, "encode module")
	}
	return bin, nil
}
