package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/xwp/ga4-extensions/internal/content"
)

// MemoryStore mirrors Store without a database. It backs dev mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	options  map[string]string
	users    map[int64]content.User
	sessions map[string]int64
	posts    map[string]content.Post
	terms    map[int64]map[string][]content.Term
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		options:  map[string]string{},
		users:    map[int64]content.User{},
		sessions: map[string]int64{},
		posts:    map[string]content.Post{},
		terms:    map[int64]map[string][]content.Term{},
	}
}

func (m *MemoryStore) GetOption(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.options[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) SetOption(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[name] = value
	return nil
}

func (m *MemoryStore) LoadOptions(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.options))
	for k, v := range m.options {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) PutUser(u content.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Roles = append([]string(nil), u.Roles...)
	m.users[u.ID] = u
}

func (m *MemoryStore) PutSession(token string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = userID
}

func (m *MemoryStore) PutPost(p content.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.Slug] = p
}

// SetTerms replaces the post's terms of one taxonomy.
func (m *MemoryStore) SetTerms(postID int64, taxonomy string, terms []content.Term) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTax, ok := m.terms[postID]
	if !ok {
		byTax = map[string][]content.Term{}
		m.terms[postID] = byTax
	}
	byTax[taxonomy] = append([]content.Term(nil), terms...)
}

func (m *MemoryStore) PostBySlug(_ context.Context, slug string) (*content.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) ListPosts(_ context.Context, limit int) ([]content.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]content.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UserByID(_ context.Context, id int64) (*content.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) UserBySession(ctx context.Context, token string) (*content.User, error) {
	m.mu.RLock()
	id, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.UserByID(ctx, id)
}

func (m *MemoryStore) Terms(_ context.Context, postID int64, taxonomy string) ([]content.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]content.Term(nil), m.terms[postID][taxonomy]...), nil
}
