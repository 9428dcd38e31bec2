package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wacli/wat/internal/token"
)

func parseU32(n *node) (uint32, error) {
	if !n.leaf || n.tok.Type != token.Number {
		return 0, fmt.Errorf("%s: expected number, got %s", n.pos(), n.tok)
	}
	s := strings.ReplaceAll(n.tok.Value, "_", "")
	val, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %s", n.pos(), n.tok.Value)
	}
	return uint32(val), nil
}

// parseI32 accepts the full i32 literal range: signed values and unsigned
// values up to 2^32-1, which wrap.
func parseI32(n *node) (int32, error) {
	if !n.leaf || n.tok.Type != token.Number {
		return 0, fmt.Errorf("%s: expected number, got %s", n.pos(), n.tok)
	}
	s := strings.ReplaceAll(n.tok.Value, "_", "")
	val, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %s", n.pos(), n.tok.Value)
	}
	if val < -(1<<31) || val > (1<<32)-1 {
		return 0, fmt.Errorf("%s: %s out of i32 range", n.pos(), n.tok.Value)
	}
	return int32(val), nil
}

func decodeString(s string) string {
	return string(DecodeStringLiteral(s))
}

// DecodeStringLiteral resolves WAT string escapes: two-digit hex (\20),
// the named escapes, and raw bytes otherwise.
func DecodeStringLiteral(s string) []byte {
	var result []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			result = append(result, s[i])
			continue
		}
		if i+2 < len(s) && isHexDigit(s[i+1]) && isHexDigit(s[i+2]) {
			result = append(result, hexValue(s[i+1])*16+hexValue(s[i+2]))
			i += 2
			continue
		}
		switch s[i+1] {
		case 'n':
			result = append(result, '\n')
		case 't':
			result = append(result, '\t')
		case 'r':
			result = append(result, '\r')
		case '\\':
			result = append(result, '\\')
		case '"':
			result = append(result, '"')
		case '\'':
			result = append(result, '\'')
		default:
			result = append(result, s[i+1])
		}
		i++
	}
	return result
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
