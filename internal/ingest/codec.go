package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// Codec errors.
var (
	ErrUnsupportedMessage = errors.New("unsupported websocket message type")
	ErrUnknownKind        = errors.New("unknown event kind")
)

// Envelope is the wire format of a firehose event. Text frames carry JSON,
// binary frames carry CBOR; both decode into the same structure.
type Envelope struct {
	Kind   string `json:"kind" cbor:"kind"`
	PostID string `json:"post_id" cbor:"post_id"`
	UserID string `json:"user_id" cbor:"user_id"`

	// Engagement fields
	Type     string            `json:"type,omitempty" cbor:"type,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" cbor:"metadata,omitempty"`

	// Impression fields
	ViewDurationMs int64   `json:"view_duration_ms,omitempty" cbor:"view_duration_ms,omitempty"`
	ScrollDepth    float64 `json:"scroll_depth,omitempty" cbor:"scroll_depth,omitempty"`
	InViewport     bool    `json:"in_viewport,omitempty" cbor:"in_viewport,omitempty"`
	DeviceType     string  `json:"device_type,omitempty" cbor:"device_type,omitempty"`
}

// DecodeEnvelope decodes a websocket frame into an Envelope.
// Text frames are decoded as JSON, binary frames as CBOR.
func DecodeEnvelope(messageType int, payload []byte) (Envelope, error) {
	var env Envelope

	switch messageType {
	case websocket.TextMessage:
		if err := json.Unmarshal(payload, &env); err != nil {
			return Envelope{}, fmt.Errorf("failed to decode JSON envelope: %w", err)
		}
	case websocket.BinaryMessage:
		if err := cbor.Unmarshal(payload, &env); err != nil {
			return Envelope{}, fmt.Errorf("failed to decode CBOR envelope: %w", err)
		}
	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedMessage, messageType)
	}

	switch env.Kind {
	case "impression", "engagement":
		return env, nil
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}
