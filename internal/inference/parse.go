package inference

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ayusman/signcheck/internal/landmark"
)

// pointsFields lists the accepted names of the landmark field, in priority
// order.
var pointsFields = []string{"points", "landmarks"}

// ParsePoints decodes a request body into landmarks. Checks run in a fixed
// order so every malformed payload maps to exactly one reason: body, field,
// length, conversion, arity.
func ParsePoints(body []byte) (landmark.Landmarks, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return landmark.Landmarks{}, NewValidationError(ReasonMalformedRequest)
	}

	var raw json.RawMessage
	for _, name := range pointsFields {
		if v, ok := obj[name]; ok && !isNull(v) {
			raw = v
			break
		}
	}
	if raw == nil {
		return landmark.Landmarks{}, NewValidationError(ReasonMissingField)
	}
	return ParsePointsValue(raw)
}

// ParsePointsValue decodes the value of the points field.
func ParsePointsValue(raw json.RawMessage) (landmark.Landmarks, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) != landmark.NumLandmarks {
		return landmark.Landmarks{}, NewValidationError(ReasonWrongLength)
	}

	// Rows must share one shape, with scalars counted as width -1. A ragged
	// payload has no array shape at all and fails conversion rather than
	// arity.
	rows := make([][]float64, len(entries))
	width := 0
	ragged := false
	for i, entry := range entries {
		w := -1
		var elems []json.RawMessage
		if err := json.Unmarshal(entry, &elems); err != nil {
			if _, ok := toFloat(entry); !ok {
				return landmark.Landmarks{}, NewValidationError(ReasonConversion)
			}
		} else {
			row := make([]float64, len(elems))
			for j, e := range elems {
				v, ok := toFloat(e)
				if !ok {
					return landmark.Landmarks{}, NewValidationError(ReasonConversion)
				}
				row[j] = v
			}
			rows[i] = row
			w = len(row)
		}
		if i == 0 {
			width = w
		} else if w != width {
			ragged = true
		}
	}
	if ragged {
		return landmark.Landmarks{}, NewValidationError(ReasonConversion)
	}
	if width != landmark.Dims {
		return landmark.Landmarks{}, NewValidationError(ReasonWrongArity)
	}

	lm, err := landmark.FromSlices(rows)
	if err != nil {
		return landmark.Landmarks{}, NewValidationError(ReasonWrongArity)
	}
	return lm, nil
}

// toFloat accepts JSON numbers and strings holding a decimal number.
func toFloat(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
