package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/money"
)

// Common errors
var (
	ErrTemplateNotFound = errors.New("recurring template not found")
	ErrInvalidFrequency = errors.New("frequency must be DAILY, WEEKLY, MONTHLY or YEARLY")
	ErrInvalidDate      = errors.New("dates must be formatted as YYYY-MM-DD")
	ErrEndBeforeStart   = errors.New("end date is before start date")
	ErrNotMember        = errors.New("user is not a member of the group")
	ErrNotCreator       = errors.New("only the creator can delete a recurring template")
	ErrAccessDenied     = errors.New("only group members can see or run its recurring templates")
)

// Store is the persistence contract for recurring templates
type Store interface {
	Create(ctx context.Context, t *Template) (*Template, error)
	GetByID(ctx context.Context, id int64) (*Template, error)
	ListByGroupID(ctx context.Context, groupID int64) ([]*Template, error)
	// ListDue returns active templates whose next execution date and start date are on or
	// before today and whose end date, if any, is not before today.
	ListDue(ctx context.Context, today time.Time) ([]*Template, error)
	// AdvanceSchedule moves a template's next execution date from due to next and sets
	// active, but only while the stored date still equals due. It reports whether this
	// call made the move, so concurrent runs claim each occurrence at most once.
	AdvanceSchedule(ctx context.Context, id int64, due, next time.Time, active bool) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// Membership lists the members of a group
type Membership interface {
	ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// Previewer allocates a split without storing it
type Previewer interface {
	PreviewSplit(req *expense.PreviewRequest) (*expense.PreviewResponse, error)
}

// Service manages recurring templates
type Service struct {
	store     Store
	members   Membership
	previewer Previewer
	processor *Processor
	now       func() time.Time
}

// NewService creates a new recurring template service
func NewService(store Store, members Membership, previewer Previewer, processor *Processor) *Service {
	return &Service{
		store:     store,
		members:   members,
		previewer: previewer,
		processor: processor,
		now:       time.Now,
	}
}

// Create validates and stores a template. The split is allocated once up front so a
// template that can never materialize is rejected here.
func (s *Service) Create(ctx context.Context, actorID int64, req *CreateTemplateRequest) (*Template, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, expense.ErrDescriptionRequired
	}

	total := money.FromDecimal(req.Amount)
	if total <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", split.ErrInvalidAmount)
	}

	frequency := Monthly
	if req.Frequency != "" {
		var ok bool
		if frequency, ok = ParseFrequency(req.Frequency); !ok {
			return nil, ErrInvalidFrequency
		}
	}

	start, end, err := s.parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	payerID := req.PayerID
	if payerID == 0 {
		payerID = actorID
	}

	members, err := s.members.ListMemberIDs(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	for _, id := range append([]int64{actorID, payerID}, participantIDs(req.Participants)...) {
		if !slices.Contains(members, id) {
			return nil, fmt.Errorf("%w: %d", ErrNotMember, id)
		}
	}

	preview, err := s.previewer.PreviewSplit(&expense.PreviewRequest{
		Amount:       req.Amount,
		SplitType:    req.SplitType,
		Participants: req.Participants,
	})
	if err != nil {
		return nil, err
	}

	t, err := s.store.Create(ctx, &Template{
		GroupID:           req.GroupID,
		CreatedBy:         actorID,
		PayerID:           payerID,
		Description:       description,
		Amount:            total,
		SplitType:         preview.SplitType,
		Participants:      req.Participants,
		Frequency:         frequency,
		StartDate:         start,
		EndDate:           end,
		NextExecutionDate: start,
		Active:            true,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Recurring template created",
		"template_id", t.ID,
		"group_id", t.GroupID,
		"frequency", t.Frequency,
		"start_date", t.StartDate.Format(dateLayout))
	return t, nil
}

func (s *Service) parseDates(startStr, endStr string) (time.Time, *time.Time, error) {
	start := day(s.now())
	if startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return time.Time{}, nil, ErrInvalidDate
		}
		start = parsed
	}

	if endStr == "" {
		return start, nil, nil
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, nil, ErrInvalidDate
	}
	if end.Before(start) {
		return time.Time{}, nil, ErrEndBeforeStart
	}
	return start, &end, nil
}

func participantIDs(participants []*expense.ParticipantInput) []int64 {
	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	return ids
}

// GetByID retrieves a template for a member of its group
func (s *Service) GetByID(ctx context.Context, actorID, id int64) (*Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, t.GroupID, actorID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Template, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTemplateNotFound
	}
	return t, nil
}

func (s *Service) requireMember(ctx context.Context, groupID, actorID int64) error {
	members, err := s.members.ListMemberIDs(ctx, groupID)
	if err != nil {
		return err
	}
	if !slices.Contains(members, actorID) {
		return ErrAccessDenied
	}
	return nil
}

// ListByGroupID returns a group's templates to one of its members
func (s *Service) ListByGroupID(ctx context.Context, actorID, groupID int64) ([]*Template, error) {
	if err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListByGroupID(ctx, groupID)
}

// Delete removes a template. Expenses it already produced are kept.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if t.CreatedBy != actorID {
		return ErrNotCreator
	}
	return s.store.Delete(ctx, id)
}

// RunNow immediately processes the due templates of a group the actor belongs to
func (s *Service) RunNow(ctx context.Context, actorID, groupID int64) (int, error) {
	if err := s.requireMember(ctx, groupID, actorID); err != nil {
		return 0, err
	}
	return s.processor.ProcessDueForGroup(ctx, s.now(), groupID)
}
