package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject indicates a message that is valid JSON but not a JSON object.
var ErrNotObject = errors.New("message is not a JSON object")

// Marshal encodes a message to JSON bytes without a trailing newline.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON bytes into a message value.
// The input must be a single JSON object.
func Unmarshal(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if json.Valid(trimmed) {
			return ErrNotObject
		}
	}
	return json.Unmarshal(trimmed, v)
}

// Valid reports whether data is exactly one JSON object.
func Valid(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

// PeekType returns the "type" discriminator of a message without decoding
// the rest of it. Messages without a type return an empty string.
func PeekType(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("failed to peek message type: %w", err)
	}
	return head.Type, nil
}

// DecodeAuthResponse decodes an agent's handshake reply.
func DecodeAuthResponse(data []byte) (*AuthResponse, error) {
	var resp AuthResponse
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &resp, nil
}

// DecodeSelection decodes an agent's command selection.
func DecodeSelection(data []byte) (*Selection, error) {
	var sel Selection
	if err := Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to decode selection: %w", err)
	}
	return &sel, nil
}

// DecodeResult decodes a command result. A missing data object decodes as
// an empty Fields value.
func DecodeResult(data []byte) (*Result, error) {
	var res Result
	if err := Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if res.Data == nil {
		res.Data = Fields{}
	}
	return &res, nil
}

// DecodeTelemetry decodes an intake request body. Header fields are read
// leniently: a mistyped type, device_id or timestamp falls back to its zero
// value, and a missing or non-object data value decodes as empty Fields.
// Only a body that is not a JSON object is an error.
func DecodeTelemetry(data []byte) (*TelemetryRequest, error) {
	var head Fields
	if err := Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry: %w", err)
	}
	if head == nil {
		return nil, fmt.Errorf("failed to decode telemetry: %w", ErrNotObject)
	}
	return &TelemetryRequest{
		Type:      head.String("type", ""),
		DeviceID:  head.String("device_id", ""),
		Timestamp: head.Int("timestamp", 0),
		Data:      head.Object("data"),
		Raw:       json.RawMessage(bytes.Clone(bytes.TrimSpace(data))),
	}, nil
}
