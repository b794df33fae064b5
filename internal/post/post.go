// Package post provides the post model and repository used to supply
// feed candidates to the ranking engine.
package post

import (
	"time"
)

// EngagementCounts holds a post's reaction counters. Counters are
// non-negative and monotonically non-decreasing in practice.
type EngagementCounts struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// Total returns the sum of all reaction counters.
func (c EngagementCounts) Total() int {
	return c.Likes + c.Reposts + c.Replies
}

// Post represents a content post. The ranking engine treats posts as
// read-only candidates; only the repository mutates counters.
type Post struct {
	ID              string           `json:"id"`
	AuthorID        string           `json:"author_id"`
	Content         string           `json:"content"`
	CreatedAt       time.Time        `json:"created_at"`
	Engagement      EngagementCounts `json:"engagement_counts"`
	ImpressionCount int              `json:"impression_count"`
}
