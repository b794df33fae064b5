package post

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsenote/pulsenote/internal/event"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrEmptyContent = errors.New("post content cannot be empty")
	ErrEmptyAuthor  = errors.New("post author cannot be empty")
)

// Repository defines the interface for post data operations.
type Repository interface {
	// Create inserts a new post. If the post has no ID one is generated
	// by prefixing the author ID, which keeps author identity derivable
	// from post IDs for the diversity heuristic.
	Create(p *Post) error

	// GetByID retrieves a post by its ID.
	GetByID(id string) (*Post, error)

	// List returns all posts ordered by created_at DESC, id ASC (tie-breaker).
	List() ([]*Post, error)

	// IncrementImpressions bumps a post's impression counter.
	IncrementImpressions(id string) error

	// IncrementEngagement bumps the counter matching the engagement type.
	// Share engagements do not map to a post counter and are a no-op here.
	IncrementEngagement(id string, typ event.EngagementType) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

// NewInMemoryRepository creates an empty in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts: make(map[string]*Post),
	}
}

// Create inserts a new post, generating an author-prefixed ID when absent.
func (r *InMemoryRepository) Create(p *Post) error {
	if p.AuthorID == "" {
		return ErrEmptyAuthor
	}
	if p.Content == "" {
		return ErrEmptyContent
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = p.AuthorID + "-" + uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	stored := *p
	r.posts[p.ID] = &stored
	return nil
}

// GetByID retrieves a copy of the post with the given ID.
func (r *InMemoryRepository) GetByID(id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns copies of all posts ordered by created_at DESC, id ASC.
func (r *InMemoryRepository) List() ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]*Post, 0, len(r.posts))
	for _, p := range r.posts {
		cp := *p
		posts = append(posts, &cp)
	}

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})

	return posts, nil
}

// IncrementImpressions bumps a post's impression counter.
func (r *InMemoryRepository) IncrementImpressions(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	p.ImpressionCount++
	return nil
}

// IncrementEngagement bumps the reaction counter matching the type.
func (r *InMemoryRepository) IncrementEngagement(id string, typ event.EngagementType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}

	switch typ {
	case event.EngagementLike:
		p.Engagement.Likes++
	case event.EngagementRepost:
		p.Engagement.Reposts++
	case event.EngagementReply:
		p.Engagement.Replies++
	case event.EngagementShare:
		// Shares are tracked in the event log only.
	}
	return nil
}
