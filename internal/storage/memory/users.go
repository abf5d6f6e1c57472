package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/user"
)

// Users implements user.Store
type Users struct{ s *State }

func (v *Users) Create(_ context.Context, req *user.RegisterRequest) (*user.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, u := range v.s.users {
		if u.Email == req.Email {
			return nil, fmt.Errorf("failed to create user: email %q already exists", req.Email)
		}
	}

	u := &user.User{ID: v.s.id(), Username: req.Username, Email: req.Email, CreatedAt: v.s.now()}
	v.s.users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (v *Users) GetByID(_ context.Context, id int64) (*user.User, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	u, ok := v.s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (v *Users) GetByEmail(_ context.Context, email string) (*user.User, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	for _, u := range v.s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (v *Users) List(_ context.Context, limit, offset int) ([]*user.User, int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	all := slices.SortedFunc(maps.Values(v.s.users), func(a, b *user.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	var out []*user.User
	for _, u := range page(all, limit, offset) {
		copied := *u
		out = append(out, &copied)
	}
	return out, len(all), nil
}

func (v *Users) Update(_ context.Context, id int64, req *user.UpdateUserRequest) (*user.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	u, ok := v.s.users[id]
	if !ok {
		return nil, nil
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	copied := *u
	return &copied, nil
}

func (v *Users) Delete(_ context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.users[id]; !ok {
		return user.ErrUserNotFound
	}
	delete(v.s.users, id)
	v.s.members = slices.DeleteFunc(v.s.members, func(m *group.GroupMember) bool { return m.UserID == id })
	return nil
}
