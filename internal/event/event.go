// Package event defines impression and engagement records, the EventSink
// contract for durable append-only persistence, and the best-effort
// background dispatcher that forwards records to a sink.
package event

import (
	"time"
)

// Kind identifies the record type inside a sink payload.
type Kind string

// Record kinds.
const (
	KindImpression Kind = "impression"
	KindEngagement Kind = "engagement"
)

// EngagementType enumerates the supported engagement kinds.
type EngagementType string

// Engagement type values.
const (
	EngagementLike   EngagementType = "like"
	EngagementRepost EngagementType = "repost"
	EngagementReply  EngagementType = "reply"
	EngagementShare  EngagementType = "share"
)

// Valid reports whether t is one of the enumerated engagement types.
func (t EngagementType) Valid() bool {
	switch t {
	case EngagementLike, EngagementRepost, EngagementReply, EngagementShare:
		return true
	}
	return false
}

// DeviceType enumerates the client device classes reported on impressions.
type DeviceType string

// Device type values. DeviceUnknown is the default when the client
// reports nothing.
const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// ImpressionMeta carries the optional client-side context of an impression.
// Absent fields default to zero values; DeviceType defaults to DeviceUnknown.
type ImpressionMeta struct {
	ViewDurationMs int64      `json:"view_duration_ms,omitempty" cbor:"view_duration_ms,omitempty"`
	ScrollDepth    float64    `json:"scroll_depth,omitempty" cbor:"scroll_depth,omitempty"` // 0..1
	InViewport     bool       `json:"in_viewport,omitempty" cbor:"in_viewport,omitempty"`
	DeviceType     DeviceType `json:"device_type,omitempty" cbor:"device_type,omitempty"`
}

// Impression is a recorded instance of a post being shown to a user.
// Impressions are append-only: once constructed they are never mutated.
type Impression struct {
	ID             string     `json:"id" cbor:"id"`
	PostID         string     `json:"post_id" cbor:"post_id"`
	UserID         string     `json:"user_id" cbor:"user_id"`
	Timestamp      time.Time  `json:"timestamp" cbor:"timestamp"`
	ViewDurationMs int64      `json:"view_duration_ms" cbor:"view_duration_ms"`
	ScrollDepth    float64    `json:"scroll_depth" cbor:"scroll_depth"`
	InViewport     bool       `json:"in_viewport" cbor:"in_viewport"`
	DeviceType     DeviceType `json:"device_type" cbor:"device_type"`
}

// Kind implements Record.
func (Impression) Kind() Kind { return KindImpression }

// EventID implements Record.
func (i Impression) EventID() string { return i.ID }

// OccurredAt implements Record.
func (i Impression) OccurredAt() time.Time { return i.Timestamp }

// Subject implements Record.
func (i Impression) Subject() (postID, userID string) { return i.PostID, i.UserID }

// Engagement is a recorded user interaction with a post.
// Engagements are append-only: once constructed they are never mutated.
type Engagement struct {
	ID        string            `json:"id" cbor:"id"`
	PostID    string            `json:"post_id" cbor:"post_id"`
	UserID    string            `json:"user_id" cbor:"user_id"`
	Type      EngagementType    `json:"type" cbor:"type"`
	Timestamp time.Time         `json:"timestamp" cbor:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty" cbor:"metadata,omitempty"`
}

// Kind implements Record.
func (Engagement) Kind() Kind { return KindEngagement }

// EventID implements Record.
func (e Engagement) EventID() string { return e.ID }

// OccurredAt implements Record.
func (e Engagement) OccurredAt() time.Time { return e.Timestamp }

// Subject implements Record.
func (e Engagement) Subject() (postID, userID string) { return e.PostID, e.UserID }

// Record is the union of persistable event types.
type Record interface {
	Kind() Kind
	EventID() string
	OccurredAt() time.Time
	// Subject returns the post and user the record is about.
	Subject() (postID, userID string)
}
