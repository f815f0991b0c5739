package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire keys of the control payload.
const (
	KeyType      = "type"
	KeyDirection = "direction"
	KeyDuration  = "duration"
	KeySpeed     = "speed"
	KeySpice     = "spice"
)

// ParsePayload decodes a control payload.
//
// Required keys are checked in the order type, direction, duration, speed,
// spice (deliver only); the first absent key is reported as a
// *MissingFieldError. Duration and speed accept JSON numbers, truncated
// toward zero, or numeric strings.
func ParsePayload(data []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawType, ok := fields[KeyType]
	if !ok {
		return Command{}, &MissingFieldError{Field: KeyType}
	}

	cmd := Command{Type: Type(text(rawType))}
	switch cmd.Type {
	case TypeMove, TypeDeliver:
	default:
		return cmd, fmt.Errorf("%w: %q", ErrUnknownType, cmd.Type)
	}

	rawDir, ok := fields[KeyDirection]
	if !ok {
		return cmd, &MissingFieldError{Field: KeyDirection}
	}
	cmd.Direction = text(rawDir)

	var err error
	if cmd.Duration, err = requiredInt(fields, KeyDuration); err != nil {
		return cmd, err
	}
	if cmd.Speed, err = requiredInt(fields, KeySpeed); err != nil {
		return cmd, err
	}

	if cmd.Type == TypeDeliver {
		rawSpice, ok := fields[KeySpice]
		if !ok {
			return cmd, &MissingFieldError{Field: KeySpice}
		}
		cmd.Condiment = text(rawSpice)
	}

	return cmd, nil
}

// text returns the string value of raw, or its JSON text when raw is not a
// string. Non-string tokens therefore never match a synonym set.
func text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func requiredInt(fields map[string]json.RawMessage, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, &MissingFieldError{Field: key}
	}
	n, err := toInt(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return n, nil
}

func toInt(raw json.RawMessage) (int, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}

	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt32 {
			return 0, fmt.Errorf("out of range: %v", x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
