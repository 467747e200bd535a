package loudness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedMeasurement = errors.New("malformed loudness measurement")

// Measurement holds the input statistics reported by a loudnorm analysis pass.
type Measurement struct {
	InputI      float64
	InputTP     float64
	InputLRA    float64
	InputThresh float64
}

// report mirrors loudnorm's print_format=json output. FFmpeg prints every
// value as a JSON string; json.Number accepts both strings and numbers.
type report struct {
	InputI      json.Number `json:"input_i"`
	InputTP     json.Number `json:"input_tp"`
	InputLRA    json.Number `json:"input_lra"`
	InputThresh json.Number `json:"input_thresh"`
}

// ExtractMeasurement finds the first balanced JSON object in FFmpeg's
// diagnostic output and parses it. Text before and after the object is ignored.
func ExtractMeasurement(output []byte) (Measurement, error) {
	span, err := firstObject(output)
	if err != nil {
		return Measurement{}, err
	}

	var r report
	if err := json.Unmarshal(span, &r); err != nil {
		return Measurement{}, fmt.Errorf("%w: %w", ErrMalformedMeasurement, err)
	}

	var m Measurement
	fields := []struct {
		name  string
		value json.Number
		dst   *float64
	}{
		{"input_i", r.InputI, &m.InputI},
		{"input_tp", r.InputTP, &m.InputTP},
		{"input_lra", r.InputLRA, &m.InputLRA},
		{"input_thresh", r.InputThresh, &m.InputThresh},
	}

	for _, f := range fields {
		if f.value == "" {
			return Measurement{}, fmt.Errorf("%w: missing %s", ErrMalformedMeasurement, f.name)
		}
		v, err := strconv.ParseFloat(f.value.String(), 64)
		if err != nil {
			return Measurement{}, fmt.Errorf("%w: %s: %w", ErrMalformedMeasurement, f.name, err)
		}
		*f.dst = v
	}
	return m, nil
}

// firstObject returns the bytes from the first '{' up to and including the
// '}' that closes it. Braces inside JSON string literals are not counted.
func firstObject(output []byte) ([]byte, error) {
	start := bytes.IndexByte(output, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrMalformedMeasurement)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := output[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return output[start : i+1], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedMeasurement)
}
