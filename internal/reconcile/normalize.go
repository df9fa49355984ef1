package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// absentPlaceholders are textual stand-ins for a missing value that spreadsheet
// and dataframe exports emit in place of an empty cell.
var absentPlaceholders = map[string]struct{}{
	"nan":   {},
	"none":  {},
	"null":  {},
	"<nil>": {},
	"n/a":   {},
}

// IsPlaceholder reports whether s, trimmed and case-folded, is one of the
// textual stand-ins for a missing value.
func IsPlaceholder(s string) bool {
	_, ok := absentPlaceholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// NormalizeKey converts a raw key value to its canonical text form.
// ok is false when the value is absent (nil, blank, or a placeholder).
func NormalizeKey(v interface{}) (key string, ok bool) {
	key = strings.TrimSpace(keyText(v))
	if key == "" {
		return "", false
	}
	if IsPlaceholder(key) {
		return "", false
	}
	return key, true
}

// NormalizeText applies key normalization to a descriptive value; absent values become "".
func NormalizeText(v interface{}) string {
	s, _ := NormalizeKey(v)
	return s
}

func keyText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return floatText(float64(val), 32)
	case float64:
		return floatText(val, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// floatText renders integral floats without a fractional part so a spreadsheet
// cell holding 1234.0 matches a warehouse integer 1234.
func floatText(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
