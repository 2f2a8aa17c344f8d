package http

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// validityMinutes accepts a JSON number or a numeric string. null and ""
// leave it unset so the service default applies.
type validityMinutes struct {
	value   *int
	invalid bool
}

func (v *validityMinutes) UnmarshalJSON(data []byte) error {
	v.value, v.invalid = nil, false

	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			v.invalid = true
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	minutes, ok := parseMinutes(raw)
	if !ok {
		v.invalid = true
		return nil
	}
	v.value = &minutes
	return nil
}

// parseMinutes accepts whole numbers only; "1.0" is fine, "1.5" is not.
func parseMinutes(raw string) (int, bool) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
