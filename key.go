package kvs

import (
	"fmt"
	"strconv"
)

// KeyOf converts k to the text form used as a storage key.
// Strings and byte slices are used as-is; integers, floats and complex numbers
// use their shortest decimal form and booleans become "true" or "false". Anything else fails with ErrKeyType.
func KeyOf(k any) (string, error) {
	switch v := k.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return fmt.Sprint(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case complex64, complex128:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrKeyType, k)
	}
}
