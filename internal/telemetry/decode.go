package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldCount is the number of leading fields every record must carry.
const FieldCount = 5

var fieldNames = [FieldCount]string{"roll", "pitch", "yaw", "battery_percent", "rssi"}

// Sample is one decoded telemetry record.
//
// Roll and Yaw hold the negated transmitted values; Pitch is as transmitted.
// Angles are not unit-converted.
type Sample struct {
	Roll           float64
	Pitch          float64
	Yaw            float64
	BatteryPercent float64
	RSSI           float64

	// ReceivedAt is stamped by the caller; Decode leaves it zero.
	ReceivedAt time.Time
}

// Decode parses a tab-separated record of the form
//
//	roll \t pitch \t yaw \t battery_percent \t rssi [\t ...]
//
// Extra trailing fields are ignored.
func Decode(record []byte) (Sample, error) {
	if !utf8.Valid(record) {
		return Sample{}, &MalformedRecordError{Reason: ReasonEncoding, Record: snippet(record), Err: fmt.Errorf("invalid utf-8")}
	}

	fields := strings.SplitN(string(record), "\t", FieldCount+1)
	if len(fields) < FieldCount {
		return Sample{}, &MalformedRecordError{
			Reason: ReasonArity,
			Record: snippet(record),
			Err:    fmt.Errorf("got %d fields, want %d", len(fields), FieldCount),
		}
	}

	var v [FieldCount]float64
	for i := 0; i < FieldCount; i++ {
		f, err := parseDecimal(fields[i])
		if err != nil {
			return Sample{}, &MalformedRecordError{Reason: ReasonNumber, Field: fieldNames[i], Record: snippet(record), Err: err}
		}
		v[i] = f
	}

	return Sample{
		Roll:           -v[0],
		Pitch:          v[1],
		Yaw:            -v[2],
		BatteryPercent: v[3],
		RSSI:           v[4],
	}, nil
}

// parseDecimal accepts plain decimal notation with an optional sign and
// exponent. Hex floats, NaN and Inf are rejected.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			continue
		}
		return 0, fmt.Errorf("invalid number %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return f, nil
}
