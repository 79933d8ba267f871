package users

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory user store for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	users []User
}

func NewMemoryRepo(users ...User) *MemoryRepo {
	return &MemoryRepo{users: append([]User(nil), users...)}
}

func (r *MemoryRepo) Add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
}

func (r *MemoryRepo) ListNotificationRecipients(ctx context.Context) ([]Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recipient, 0)
	for _, u := range r.users {
		if !u.NotificationsEnabled || u.Email == "" {
			continue
		}
		out = append(out, Recipient{UserID: u.ID, Email: u.Email, Name: u.Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := normalizeEmail(email)
	for _, u := range r.users {
		if normalizeEmail(u.Email) == want {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}
