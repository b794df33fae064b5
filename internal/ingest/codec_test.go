package ingest

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

func TestDecodeEnvelope_JSON(t *testing.T) {
	payload := []byte(`{
		"kind": "engagement",
		"post_id": "alice-001",
		"user_id": "u1",
		"type": "like",
		"metadata": {"surface": "feed"}
	}`)

	env, err := DecodeEnvelope(websocket.TextMessage, payload)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}

	if env.Kind != "engagement" || env.PostID != "alice-001" || env.UserID != "u1" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env.Type != "like" || env.Metadata["surface"] != "feed" {
		t.Errorf("unexpected engagement fields: %+v", env)
	}
}

func TestDecodeEnvelope_CBOR(t *testing.T) {
	original := Envelope{
		Kind:           "impression",
		PostID:         "alice-001",
		UserID:         "u1",
		ViewDurationMs: 1500,
		ScrollDepth:    0.6,
		InViewport:     true,
		DeviceType:     "mobile",
	}
	payload, err := cbor.Marshal(original)
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}

	env, err := DecodeEnvelope(websocket.BinaryMessage, payload)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}

	if !reflect.DeepEqual(env, original) {
		t.Errorf("envelope round-trip mismatch:\n got %+v\nwant %+v", env, original)
	}
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		payload     []byte
		wantErr     error
	}{
		{
			name:        "ping frame",
			messageType: websocket.PingMessage,
			payload:     nil,
			wantErr:     ErrUnsupportedMessage,
		},
		{
			name:        "unknown kind",
			messageType: websocket.TextMessage,
			payload:     []byte(`{"kind":"reaction","post_id":"p1","user_id":"u1"}`),
			wantErr:     ErrUnknownKind,
		},
		{
			name:        "empty kind",
			messageType: websocket.TextMessage,
			payload:     []byte(`{"post_id":"p1","user_id":"u1"}`),
			wantErr:     ErrUnknownKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.messageType, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeEnvelope() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEnvelope_MalformedPayloads(t *testing.T) {
	if _, err := DecodeEnvelope(websocket.TextMessage, []byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := DecodeEnvelope(websocket.BinaryMessage, []byte{0xff, 0xff}); err == nil {
		t.Error("expected error for malformed CBOR")
	}
}
