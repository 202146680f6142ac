// internal/models/common.go
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a price-like value that decodes from a JSON number or a
// numeric-looking string. Anything else decodes to zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number(ParseLenient(data))
	return nil
}

func (n Number) Float64() float64 {
	return float64(n)
}

// Count is a quantity-like value with the same lenient decoding as Number.
// Fractional input is truncated.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	*c = Count(int(ParseLenient(data)))
	return nil
}

func (c Count) Int() int {
	return int(c)
}

// ParseLenient reads a raw JSON value as a number. Quoted numerals are
// accepted; null, booleans, objects and garbage yield 0.
func ParseLenient(data []byte) float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0
		}
		return ParseNumeric(s)
	}

	return ParseNumeric(string(data))
}

// ParseNumeric converts a numeric-looking string to a finite float64.
func ParseNumeric(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// SessionState is the cart service state machine position.
type SessionState string

const (
	StateAnonymousLocal      SessionState = "anonymous_local"
	StateTransitioning       SessionState = "transitioning"
	StateAuthenticatedRemote SessionState = "authenticated_remote"
)

// Envelope is the uniform response shape used by the storefront backend
// and by this service's own HTTP surface.
type Envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   bool            `json:"error"`
}
