package record

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Amount is a numeric record field. It decodes from a JSON number, a numeric
// string or null; any other value reads as 0.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = 0
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*a = Amount(f)
	return nil
}

// Float64 returns the amount as a float64.
func (a Amount) Float64() float64 {
	return float64(a)
}

// Text is a string record field. Numbers and booleans keep their literal
// text; null, objects and arrays read as the empty string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		*t = Text(s)
	case '{', '[', 'n':
		return nil
	default:
		*t = Text(raw)
	}
	return nil
}

// String returns the raw text.
func (t Text) String() string {
	return string(t)
}

// Or returns the trimmed text, or fallback when it is blank.
func (t Text) Or(fallback string) string {
	if s := strings.TrimSpace(string(t)); s != "" {
		return s
	}
	return fallback
}
