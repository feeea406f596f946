package record

import (
	"errors"
	"math"
	"strconv"
	"time"
)

var errInvalidTimestamp = errors.New("invalid timestamp")

const (
	minReasonableYear = 2000
	maxReasonableYear = 2100
)

func interpretFloatAsTimestamp(value float64) (time.Time, error) {
	multipliers := []float64{
		1.0,          // seconds
		1000.0,       // milliseconds
		1000000.0,    // microseconds
		1000000000.0, // nanoseconds
	}
	for _, multiplier := range multipliers {
		seconds := int64(math.Floor(value / multiplier))
		fractionalSeconds := value/multiplier - float64(seconds)
		nanoseconds := int64(fractionalSeconds * 1e9)
		t := time.Unix(seconds, nanoseconds)
		if t.Year() >= minReasonableYear && t.Year() <= maxReasonableYear {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errInvalidTimestamp
}

func interpretIntAsTimestamp(value int64) (time.Time, error) {
	multipliers := []int64{
		1,          // seconds
		1000,       // milliseconds
		1000000,    // microseconds
		1000000000, // nanoseconds
	}
	for _, multiplier := range multipliers {
		t := time.Unix(value/multiplier, (value%multiplier)*(1000000000/multiplier))
		if t.Year() >= minReasonableYear && t.Year() <= maxReasonableYear {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errInvalidTimestamp
}

var allowedTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// InterpretTimestamp accepts RFC 3339 strings, plain dates, unix times in
// seconds through nanoseconds, and time.Time values.
func InterpretTimestamp(value interface{}) (time.Time, error) {
	switch value := value.(type) {
	case time.Time:
		return value.UTC(), nil
	case string:
		parsedInt, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return interpretIntAsTimestamp(parsedInt)
		}

		for _, layout := range allowedTimestampLayouts {
			t, err := time.Parse(layout, value)
			if err == nil {
				return t.UTC(), nil
			}
		}

		return time.Time{}, errInvalidTimestamp
	case float64:
		return interpretFloatAsTimestamp(value)
	case int64:
		return interpretIntAsTimestamp(value)
	case int:
		return interpretIntAsTimestamp(int64(value))
	default:
		return time.Time{}, errInvalidTimestamp
	}
}
