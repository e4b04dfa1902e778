package services

import (
	"encoding/base64"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/kelsos/keeper-sync/internal/models"
)

var (
	ErrValueUndefined  = errors.New("value is undefined")
	ErrIncorrectBase58 = errors.New("incorrect base58")
)

// B58StrToB64Str re-encodes a base58 string as base64.
func B58StrToB64Str(s string) (string, error) {
	if s == "" {
		return "", ErrIncorrectBase58
	}

	// base58.Decode signals invalid input with an empty result
	decoded := base58.Decode(s)
	if len(decoded) == 0 {
		return "", ErrIncorrectBase58
	}
	return base64.StdEncoding.EncodeToString(decoded), nil
}

// ConvertArgValue coerces one raw argument according to its declared type and encoding hint.
func ConvertArgValue(arg models.ArgumentInput) (interface{}, error) {
	if arg.Value == nil {
		return "", ErrValueUndefined
	}
	value := *arg.Value

	if arg.Type == models.ArgTypeBoolean && (value == "true" || value == "false") {
		return value == "true", nil
	}

	if arg.Type == models.ArgTypeInt {
		if number, ok := parseNumber(value); ok {
			return number, nil
		}
	}

	switch arg.ByteVectorType {
	case models.EncodingBase58:
		encoded, err := B58StrToB64Str(value)
		if err != nil {
			return nil, err
		}
		return "base64:" + encoded, nil
	case models.EncodingBase64:
		return "base64:" + value, nil
	}

	return value, nil
}

// ConvertArgType maps a declared argument type to the tag the extension expects.
func ConvertArgType(argType string) string {
	switch argType {
	case models.ArgTypeBoolean:
		return "boolean"
	case models.ArgTypeByteVector:
		return "binary"
	case models.ArgTypeInt:
		return "integer"
	case models.ArgTypeString:
		return "string"
	default:
		return argType
	}
}

// parseNumber follows the numeric conversion browsers apply to form input:
// surrounding whitespace is ignored, an empty string is zero and 0x/0o/0b
// prefixes are accepted. Integral results are returned as int64.
func parseNumber(raw string) (interface{}, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return int64(0), true
	}
	if strings.Contains(s, "_") {
		return nil, false
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(s[2:], base, 63)
			if err != nil {
				return nil, false
			}
			return int64(u), true
		}
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f), true
	}
	return f, true
}
