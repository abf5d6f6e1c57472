package group

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrInvalidRole         = errors.New("role must be ADMIN or MEMBER")
	ErrNotInvited          = errors.New("you are not invited to this group")
)

// DefaultCurrency is used when a group is created without one.
const DefaultCurrency = "USD"

// Store is the persistence contract for groups and memberships.
type Store interface {
	Create(ctx context.Context, creatorID int64, req *CreateGroupRequest) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error)
	Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error)
	Delete(ctx context.Context, id int64) error
	AddMember(ctx context.Context, groupID int64, req *AddMemberRequest) (*GroupMember, error)
	GetMembers(ctx context.Context, groupID int64) ([]*GroupMember, error)
	GetMember(ctx context.Context, groupID, userID int64) (*GroupMember, error)
	// ListMemberIDs returns the JOINED members in join order; invitations are left out.
	ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	UpdateMember(ctx context.Context, groupID, userID int64, req *UpdateMemberRequest) (*GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// Service handles group business logic
type Service struct {
	repo Store
}

// NewService creates a new group service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create creates a new group with the creator as its admin
func (s *Service) Create(ctx context.Context, creatorID int64, req *CreateGroupRequest) (*Group, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}

	group, err := s.repo.Create(ctx, creatorID, req)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Group created", "group_id", group.ID, "created_by", creatorID)
	return group, nil
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Group, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// GetByIDWithMembers retrieves a group with all its members
func (s *Service) GetByIDWithMembers(ctx context.Context, id int64) (*Group, []*GroupMember, error) {
	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.repo.GetMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return group, members, nil
}

// ListByUserID retrieves all groups for a user
func (s *Service) ListByUserID(ctx context.Context, userID int64, page, perPage int) ([]*Group, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByUserID(ctx, userID, perPage, offset)
}

// Update modifies an existing group
func (s *Service) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	group, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// Delete removes a group. Only admins may delete.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if err := s.requireAdmin(ctx, id, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// AddMember invites a user to a group. They count as a member once they accept.
func (s *Service) AddMember(ctx context.Context, groupID int64, req *AddMemberRequest) (*GroupMember, error) {
	if req.Role != "" && req.Role != MemberRoleAdmin && req.Role != MemberRoleMember {
		return nil, ErrInvalidRole
	}

	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetMember(ctx, groupID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	return s.repo.AddMember(ctx, groupID, req)
}

// GetMembers retrieves all members of a group
func (s *Service) GetMembers(ctx context.Context, groupID int64) ([]*GroupMember, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	return s.repo.GetMembers(ctx, groupID)
}

// ListMemberIDs returns the ids of the group's joined members
func (s *Service) ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	return s.repo.ListMemberIDs(ctx, groupID)
}

// IsMember reports whether userID has joined the group
func (s *Service) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	ids, err := s.ListMemberIDs(ctx, groupID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, userID), nil
}

// UpdateMember changes a member's role. A status in req is ignored.
func (s *Service) UpdateMember(ctx context.Context, groupID, userID int64, req *UpdateMemberRequest) (*GroupMember, error) {
	if req.Role == nil || (*req.Role != MemberRoleAdmin && *req.Role != MemberRoleMember) {
		return nil, ErrInvalidRole
	}

	member, err := s.repo.UpdateMember(ctx, groupID, userID, &UpdateMemberRequest{Role: req.Role})
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// AcceptInvitation marks the user's membership as JOINED. Accepting twice is a no-op.
func (s *Service) AcceptInvitation(ctx context.Context, groupID, userID int64) (*GroupMember, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	member, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotInvited
	}
	if member.Status == MemberStatusJoined {
		return member, nil
	}

	joined := MemberStatusJoined
	member, err = s.repo.UpdateMember(ctx, groupID, userID, &UpdateMemberRequest{Status: &joined})
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotInvited
	}

	slog.InfoContext(ctx, "Group invitation accepted", "group_id", groupID, "user_id", userID)
	return member, nil
}

// RemoveMember removes a user from a group. Past shares and payments stay on the
// books and are left out of the group's balances from then on.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID int64) error {
	return s.repo.RemoveMember(ctx, groupID, userID)
}

func (s *Service) requireAdmin(ctx context.Context, groupID, userID int64) error {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return err
	}
	member, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil || member.Status != MemberStatusJoined || member.Role != MemberRoleAdmin {
		return ErrNotAuthorized
	}
	return nil
}
