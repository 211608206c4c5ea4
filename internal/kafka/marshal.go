package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

func DecodeEnvelope(b []byte) (bookstore.Envelope, error) {
	var env bookstore.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes the typed payload of an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
