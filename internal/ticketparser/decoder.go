package ticketparser

import (
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// =============================================================================
// FIELD DECODER
// =============================================================================

// FieldKind is the expected scalar type of a field.
type FieldKind int

const (
	FieldInt32 FieldKind = iota
	FieldUint32
	FieldFloat32
	FieldCurrency
	FieldDate
)

// DateFormat is the only accepted date shape.
const DateFormat = "20060102"

// String returns the name used in "Expected X found Y" messages.
func (k FieldKind) String() string {
	switch k {
	case FieldInt32:
		return "i32"
	case FieldUint32:
		return "u32"
	case FieldFloat32:
		return "f32"
	case FieldCurrency:
		return "Currency"
	case FieldDate:
		return "%Y%m%d"
	default:
		return "unknown"
	}
}

// errorKind maps a field kind to the error kind reported on failure.
func (k FieldKind) errorKind() types.ErrorKind {
	switch k {
	case FieldInt32, FieldUint32:
		return types.KindParseInteger
	case FieldFloat32:
		return types.KindParseFloat
	case FieldCurrency:
		return types.KindCurrencyError
	case FieldDate:
		return types.KindInvalidDate
	default:
		return types.KindParseInteger
	}
}

// fail builds the classified error for raw.
func (k FieldKind) fail(raw string) *types.ParseError {
	return types.NewParseError(k.errorKind(), k.String(), raw)
}

// DecodeField converts raw into the scalar named by kind.
//
// PARAMETERS:
//   - raw: The field text exactly as sliced from the line. It is never
//     trimmed; a blank inside a numeric field is an error.
//   - kind: The expected scalar type.
//
// RETURNS:
//   - int32, uint32, float32, types.Currency or time.Time, depending on kind.
//   - A ParseError tagged with the kind's error classification on failure.
func DecodeField(raw string, kind FieldKind) (any, *types.ParseError) {
	switch kind {
	case FieldInt32:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, kind.fail(raw)
		}
		return int32(v), nil

	case FieldUint32:
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, kind.fail(raw)
		}
		return uint32(v), nil

	case FieldFloat32:
		// ParseFloat also takes hex mantissas and digit separators.
		if strings.ContainsAny(raw, "xX_") {
			return nil, kind.fail(raw)
		}
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, kind.fail(raw)
		}
		return float32(v), nil

	case FieldCurrency:
		switch types.Currency(raw) {
		case types.CurrencyUSD, types.CurrencyMXN, types.CurrencyEUR:
			return types.Currency(raw), nil
		}
		return nil, kind.fail(raw)

	case FieldDate:
		if len(raw) != len(DateFormat) || !allDigits(raw) {
			return nil, kind.fail(raw)
		}
		t, err := time.Parse(DateFormat, raw)
		if err != nil {
			return nil, kind.fail(raw)
		}
		return t, nil
	}

	return nil, kind.fail(raw)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Typed wrappers so record parsers read naturally.

func decodeInt32(raw string) (int32, *types.ParseError) {
	v, err := DecodeField(raw, FieldInt32)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func decodeUint32(raw string) (uint32, *types.ParseError) {
	v, err := DecodeField(raw, FieldUint32)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

func decodeFloat32(raw string) (float32, *types.ParseError) {
	v, err := DecodeField(raw, FieldFloat32)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

func decodeCurrency(raw string) (types.Currency, *types.ParseError) {
	v, err := DecodeField(raw, FieldCurrency)
	if err != nil {
		return "", err
	}
	return v.(types.Currency), nil
}

func decodeDate(raw string) (time.Time, *types.ParseError) {
	v, err := DecodeField(raw, FieldDate)
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}
