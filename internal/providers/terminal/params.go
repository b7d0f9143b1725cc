package terminal

import (
	"fmt"
	"math"

	"github.com/Yahook/mcp-terminal/internal/service"
)

// ErrInvalidParams marks a tool call whose arguments are missing or of the
// wrong type.
var ErrInvalidParams = service.ErrInvalidParams

func requireString(params map[string]interface{}, name string) (string, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: missing required parameter %q", ErrInvalidParams, name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q must be a string", ErrInvalidParams, name)
	}
	return s, nil
}

// optionalString treats a missing key and JSON null as unset.
func optionalString(params map[string]interface{}, name string) (string, error) {
	s, _, err := lookupString(params, name)
	return s, err
}

// lookupString also reports whether the parameter was given at all, so an
// explicit "" can be told apart from an absent value.
func lookupString(params map[string]interface{}, name string) (string, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: parameter %q must be a string", ErrInvalidParams, name)
	}
	return s, true, nil
}

// optionalUint reads a non-negative integer. Decoded JSON numbers arrive as
// float64; Go callers may pass ints.
func optionalUint(params map[string]interface{}, name string) (int, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return 0, false, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint32:
		f = float64(v)
	default:
		return 0, false, fmt.Errorf("%w: parameter %q must be a number", ErrInvalidParams, name)
	}

	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false, fmt.Errorf("%w: parameter %q must be a non-negative integer", ErrInvalidParams, name)
	}
	return int(f), true, nil
}
