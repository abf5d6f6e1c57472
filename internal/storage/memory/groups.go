package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/fkhayef/splitledger/internal/group"
)

// Groups implements group.Store
type Groups struct{ s *State }

func (v *Groups) Create(_ context.Context, creatorID int64, req *group.CreateGroupRequest) (*group.Group, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.users[creatorID]; !ok {
		return nil, fmt.Errorf("failed to create group: user %d does not exist", creatorID)
	}

	g := &group.Group{
		ID:          v.s.id(),
		Name:        req.Name,
		Description: req.Description,
		Currency:    req.Currency,
		CreatedBy:   creatorID,
		CreatedAt:   v.s.now(),
	}
	v.s.groups[g.ID] = g
	v.s.members = append(v.s.members, &group.GroupMember{
		ID:       v.s.id(),
		GroupID:  g.ID,
		UserID:   creatorID,
		Status:   group.MemberStatusJoined,
		Role:     group.MemberRoleAdmin,
		JoinedAt: g.CreatedAt,
	})

	copied := *g
	return &copied, nil
}

func (v *Groups) GetByID(_ context.Context, id int64) (*group.Group, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	g, ok := v.s.groups[id]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

func (v *Groups) ListByUserID(_ context.Context, userID int64, limit, offset int) ([]*group.Group, int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var mine []*group.Group
	for _, m := range v.s.members {
		if m.UserID == userID {
			if g, ok := v.s.groups[m.GroupID]; ok {
				mine = append(mine, g)
			}
		}
	}
	slices.SortFunc(mine, func(a, b *group.Group) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	var out []*group.Group
	for _, g := range page(mine, limit, offset) {
		copied := *g
		out = append(out, &copied)
	}
	return out, len(mine), nil
}

func (v *Groups) Update(_ context.Context, id int64, req *group.UpdateGroupRequest) (*group.Group, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	g, ok := v.s.groups[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		g.Name = *req.Name
	}
	if req.Description != nil {
		g.Description = req.Description
	}
	copied := *g
	return &copied, nil
}

func (v *Groups) Delete(_ context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.groups[id]; !ok {
		return group.ErrGroupNotFound
	}
	delete(v.s.groups, id)
	v.s.members = slices.DeleteFunc(v.s.members, func(m *group.GroupMember) bool { return m.GroupID == id })
	for eid, e := range v.s.expenses {
		if e.GroupID == id {
			v.s.deleteExpense(eid)
		}
	}
	for tid, t := range v.s.templates {
		if t.GroupID == id {
			delete(v.s.templates, tid)
		}
	}
	return nil
}

func (v *Groups) AddMember(_ context.Context, groupID int64, req *group.AddMemberRequest) (*group.GroupMember, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.users[req.UserID]; !ok {
		return nil, fmt.Errorf("failed to add member: user %d does not exist", req.UserID)
	}
	if v.s.member(groupID, req.UserID) != nil {
		return nil, fmt.Errorf("failed to add member: user %d already in group %d", req.UserID, groupID)
	}

	role := req.Role
	if role == "" {
		role = group.MemberRoleMember
	}
	m := &group.GroupMember{
		ID:       v.s.id(),
		GroupID:  groupID,
		UserID:   req.UserID,
		Status:   group.MemberStatusInvited,
		Role:     role,
		JoinedAt: v.s.now(),
	}
	v.s.members = append(v.s.members, m)

	copied := *m
	return &copied, nil
}

// withUser copies m and fills the joined user columns.
func (s *State) withUser(m *group.GroupMember) *group.GroupMember {
	copied := *m
	if u, ok := s.users[m.UserID]; ok {
		copied.Username = u.Username
		copied.Email = u.Email
	}
	return &copied
}

func (s *State) member(groupID, userID int64) *group.GroupMember {
	for _, m := range s.members {
		if m.GroupID == groupID && m.UserID == userID {
			return m
		}
	}
	return nil
}

func (v *Groups) GetMembers(_ context.Context, groupID int64) ([]*group.GroupMember, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*group.GroupMember
	for _, m := range v.s.members {
		if m.GroupID == groupID {
			out = append(out, v.s.withUser(m))
		}
	}
	return out, nil
}

func (v *Groups) GetMember(_ context.Context, groupID, userID int64) (*group.GroupMember, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	m := v.s.member(groupID, userID)
	if m == nil {
		return nil, nil
	}
	return v.s.withUser(m), nil
}

// ListMemberIDs returns joined member ids in join order
func (v *Groups) ListMemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var ids []int64
	for _, m := range v.s.members {
		if m.GroupID == groupID && m.Status == group.MemberStatusJoined {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

func (v *Groups) UpdateMember(_ context.Context, groupID, userID int64, req *group.UpdateMemberRequest) (*group.GroupMember, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	m := v.s.member(groupID, userID)
	if m == nil {
		return nil, nil
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.Role != nil {
		m.Role = *req.Role
	}
	copied := *m
	return &copied, nil
}

func (v *Groups) RemoveMember(_ context.Context, groupID, userID int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	before := len(v.s.members)
	v.s.members = slices.DeleteFunc(v.s.members, func(m *group.GroupMember) bool {
		return m.GroupID == groupID && m.UserID == userID
	})
	if len(v.s.members) == before {
		return group.ErrMemberNotFound
	}
	return nil
}
