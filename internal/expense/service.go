package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/money"
)

// Common errors
var (
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrNotMember           = errors.New("user is not a member of the group")
	ErrNotCreator          = errors.New("only the creator can delete an expense")
	ErrAccessDenied        = errors.New("only group members can see its expenses")
	ErrPaymentMismatch     = errors.New("payments do not add up to the total")
	ErrDescriptionRequired = errors.New("description is required")
)

// Store persists expenses together with their payments and shares. Writes that touch
// payments or shares are atomic.
type Store interface {
	CreateExpense(ctx context.Context, e *Expense, payments []Payment, shares []split.Share) (*Expense, error)
	ReplaceExpense(ctx context.Context, e *Expense, payments []Payment, shares []split.Share) (*Expense, error)
	GetExpenseByID(ctx context.Context, id int64) (*Expense, error)
	GetPayments(ctx context.Context, expenseID int64) ([]Payment, error)
	GetShares(ctx context.Context, expenseID int64) ([]split.Share, error)
	ListExpensesByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error)
	DeleteExpense(ctx context.Context, id int64) error
}

// Membership lists the members of a group
type Membership interface {
	ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// Service handles expense business logic
type Service struct {
	repo      Store
	members   Membership
	factory   *split.Factory
	publisher events.Publisher
}

// NewService creates a new expense service with dependencies injected
func NewService(repo Store, members Membership, factory *split.Factory, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:      repo,
		members:   members,
		factory:   factory,
		publisher: publisher,
	}
}

// CreateExpense validates the request, allocates shares and stores the expense with its
// payments and shares.
func (s *Service) CreateExpense(ctx context.Context, actorID int64, req *CreateExpenseRequest) (*ExpenseWithShares, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}

	total, err := positiveTotal(req.Amount)
	if err != nil {
		return nil, err
	}

	members, err := s.memberSet(ctx, req.GroupID, actorID)
	if err != nil {
		return nil, err
	}

	payments, err := resolvePayments(req.Payments, actorID, total, members)
	if err != nil {
		return nil, err
	}

	shares, splitType, err := s.allocate(total, req.SplitType, req.Participants, members)
	if err != nil {
		return nil, err
	}

	expense, err := s.repo.CreateExpense(ctx, &Expense{
		GroupID:     req.GroupID,
		CreatedBy:   actorID,
		Description: description,
		Amount:      total,
		SplitType:   splitType,
		TemplateID:  req.TemplateID,
	}, payments, shares)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", expense.Amount,
		"split_type", splitType)

	result := &ExpenseWithShares{Expense: expense, Payments: payments, Shares: shares}
	s.publish(ctx, events.ExpenseCreated, actorID, result)
	return result, nil
}

// UpdateExpense changes any of description, amount, split type, participants and payments.
// Omitted fields keep their stored values. Shares and payments are replaced as a whole.
func (s *Service) UpdateExpense(ctx context.Context, actorID, id int64, req *UpdateExpenseRequest) (*ExpenseWithShares, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	members, err := s.memberSet(ctx, current.Expense.GroupID, actorID)
	if err != nil {
		return nil, err
	}

	updated := *current.Expense
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
		if updated.Description == "" {
			return nil, ErrDescriptionRequired
		}
	}
	if req.Amount != nil {
		if updated.Amount, err = positiveTotal(*req.Amount); err != nil {
			return nil, err
		}
	}

	splitType := string(current.Expense.SplitType)
	if req.SplitType != nil {
		splitType = *req.SplitType
	}

	participants := req.Participants
	if len(participants) == 0 {
		participants = participantsFromShares(current.Shares)
	}

	var payments []Payment
	switch {
	case len(req.Payments) > 0:
		payments, err = resolvePayments(req.Payments, actorID, updated.Amount, members)
	case updated.Amount == current.Expense.Amount:
		payments = current.Payments
	case len(current.Payments) == 1:
		// a single payer covers the new amount
		payments = []Payment{{UserID: current.Payments[0].UserID, Amount: updated.Amount}}
	default:
		payments, err = resolvePayments(paymentInputs(current.Payments), actorID, updated.Amount, members)
	}
	if err != nil {
		return nil, err
	}

	shares, kind, err := s.allocate(updated.Amount, splitType, participants, members)
	if err != nil {
		return nil, err
	}
	updated.SplitType = kind

	return s.replace(ctx, actorID, events.ExpenseUpdated, &updated, payments, shares)
}

// RedistributeExpense recomputes shares under a new policy or participant set. The amount
// and payments stay as stored.
func (s *Service) RedistributeExpense(ctx context.Context, actorID, id int64, req *RedistributeRequest) (*ExpenseWithShares, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	members, err := s.memberSet(ctx, current.Expense.GroupID, actorID)
	if err != nil {
		return nil, err
	}

	splitType := req.SplitType
	if splitType == "" {
		splitType = string(current.Expense.SplitType)
	}
	participants := req.Participants
	if len(participants) == 0 {
		participants = participantsFromShares(current.Shares)
	}

	shares, kind, err := s.allocate(current.Expense.Amount, splitType, participants, members)
	if err != nil {
		return nil, err
	}

	updated := *current.Expense
	updated.SplitType = kind

	return s.replace(ctx, actorID, events.ExpenseRedistributed, &updated, current.Payments, shares)
}

func (s *Service) replace(ctx context.Context, actorID int64, eventType string, e *Expense, payments []Payment, shares []split.Share) (*ExpenseWithShares, error) {
	expense, err := s.repo.ReplaceExpense(ctx, e, payments, shares)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Expense shares replaced",
		"expense_id", expense.ID,
		"event", eventType,
		"split_type", expense.SplitType,
		"participants", len(shares))

	result := &ExpenseWithShares{Expense: expense, Payments: payments, Shares: shares}
	s.publish(ctx, eventType, actorID, result)
	return result, nil
}

// GetExpense retrieves an expense with its payments and shares for a member of its group
func (s *Service) GetExpense(ctx context.Context, actorID, id int64) (*ExpenseWithShares, error) {
	result, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, result.Expense.GroupID, actorID); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) load(ctx context.Context, id int64) (*ExpenseWithShares, error) {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	payments, err := s.repo.GetPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	shares, err := s.repo.GetShares(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExpenseWithShares{Expense: expense, Payments: payments, Shares: shares}, nil
}

// ListExpensesByGroupID retrieves a page of a group's expenses for one of its members
func (s *Service) ListExpensesByGroupID(ctx context.Context, actorID, groupID int64, page, perPage int) ([]*Expense, int, error) {
	if err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListExpensesByGroupID(ctx, groupID, perPage, offset)
}

// DeleteExpense deletes an expense. Only its creator may do so.
func (s *Service) DeleteExpense(ctx context.Context, actorID, id int64) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if current.Expense.CreatedBy != actorID {
		return ErrNotCreator
	}

	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id, "group_id", current.Expense.GroupID)
	s.publish(ctx, events.ExpenseDeleted, actorID, current)
	return nil
}

// PreviewSplit allocates without touching storage
func (s *Service) PreviewSplit(req *PreviewRequest) (*PreviewResponse, error) {
	if req.Amount.IsNegative() {
		return nil, split.ErrInvalidAmount
	}
	total := money.FromDecimal(req.Amount)

	shares, kind, err := s.allocate(total, req.SplitType, req.Participants, nil)
	if err != nil {
		return nil, err
	}

	return &PreviewResponse{Amount: total, SplitType: kind, Shares: shares}, nil
}

// allocate builds the policy for splitType and computes shares. A nil members set skips
// the membership check.
func (s *Service) allocate(total money.Amount, splitType string, participants []*ParticipantInput, members map[int64]struct{}) ([]split.Share, split.SplitType, error) {
	if len(participants) == 0 {
		return nil, "", rejected(split.ErrNoParticipants)
	}

	kind := split.ParseSplitType(splitType)
	ids := make([]int64, 0, len(participants))
	inputs := make(map[int64]decimal.Decimal)
	for _, p := range participants {
		if members != nil {
			if _, ok := members[p.UserID]; !ok {
				return nil, "", fmt.Errorf("%w: participant %d", ErrNotMember, p.UserID)
			}
		}
		ids = append(ids, p.UserID)

		switch kind {
		case split.SplitTypeCustom:
			if p.Amount != nil {
				inputs[p.UserID] = *p.Amount
			}
		case split.SplitTypePercentage:
			if p.Percentage != nil {
				inputs[p.UserID] = *p.Percentage
			}
		}
	}

	policy, err := s.factory.Create(kind, inputs)
	if err != nil {
		return nil, "", rejected(err)
	}

	shares, err := split.Allocate(total, ids, policy)
	if err != nil {
		return nil, "", rejected(err)
	}

	metrics.SplitsAllocated.WithLabelValues(string(policy.Type())).Inc()
	return shares, policy.Type(), nil
}

func rejected(err error) error {
	reason := "other"
	switch {
	case errors.Is(err, split.ErrShareMismatch):
		reason = "share_mismatch"
	case errors.Is(err, split.ErrInvalidAmount):
		reason = "invalid_amount"
	case errors.Is(err, split.ErrInvalidPolicy):
		reason = "invalid_policy"
	case errors.Is(err, split.ErrMissingInputs):
		reason = "missing_inputs"
	case errors.Is(err, split.ErrNoParticipants):
		reason = "no_participants"
	case errors.Is(err, split.ErrDuplicateMember):
		reason = "duplicate_member"
	}
	metrics.SplitsRejected.WithLabelValues(reason).Inc()
	return err
}

func (s *Service) requireMember(ctx context.Context, groupID, actorID int64) error {
	ids, err := s.members.ListMemberIDs(ctx, groupID)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, actorID) {
		return ErrAccessDenied
	}
	return nil
}

func (s *Service) memberSet(ctx context.Context, groupID, actorID int64) (map[int64]struct{}, error) {
	ids, err := s.members.ListMemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ids, actorID) {
		return nil, ErrNotMember
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func positiveTotal(amount decimal.Decimal) (money.Amount, error) {
	total := money.FromDecimal(amount)
	if total <= 0 {
		return 0, fmt.Errorf("%w: expense amount must be greater than zero", split.ErrInvalidAmount)
	}
	return total, nil
}

// resolvePayments defaults to the full amount paid by actorID. Given payments must come
// from members and add up to total within split.Tolerance.
func resolvePayments(inputs []*PaymentInput, actorID int64, total money.Amount, members map[int64]struct{}) ([]Payment, error) {
	if len(inputs) == 0 {
		return []Payment{{UserID: actorID, Amount: total}}, nil
	}

	payments := make([]Payment, 0, len(inputs))
	sum := decimal.Zero
	for _, in := range inputs {
		if _, ok := members[in.UserID]; !ok {
			return nil, fmt.Errorf("%w: payer %d", ErrNotMember, in.UserID)
		}
		if in.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: payment by %d", split.ErrInvalidAmount, in.UserID)
		}
		sum = sum.Add(in.Amount)
		payments = append(payments, Payment{UserID: in.UserID, Amount: money.FromDecimal(in.Amount)})
	}

	if err := split.CheckSum(ErrPaymentMismatch, "payments", total.Decimal(), sum); err != nil {
		return nil, err
	}
	return payments, nil
}

// participantsFromShares recovers raw inputs from stored shares so a policy can be
// re-applied without the caller repeating them.
func participantsFromShares(shares []split.Share) []*ParticipantInput {
	participants := make([]*ParticipantInput, len(shares))
	for i, sh := range shares {
		amount, percent := sh.Amount.Decimal(), sh.Percent.Decimal()
		participants[i] = &ParticipantInput{UserID: sh.UserID, Amount: &amount, Percentage: &percent}
	}
	return participants
}

func paymentInputs(payments []Payment) []*PaymentInput {
	inputs := make([]*PaymentInput, len(payments))
	for i, p := range payments {
		inputs[i] = &PaymentInput{UserID: p.UserID, Amount: p.Amount.Decimal()}
	}
	return inputs
}

func (s *Service) publish(ctx context.Context, eventType string, actorID int64, e *ExpenseWithShares) {
	events.PublishAfterCommit(ctx, s.publisher, events.New(eventType, events.ExpensePayload{
		ExpenseID:    e.Expense.ID,
		GroupID:      e.Expense.GroupID,
		ActorID:      actorID,
		Description:  e.Expense.Description,
		Amount:       e.Expense.Amount,
		SplitType:    string(e.Expense.SplitType),
		Participants: e.Participants(),
		TemplateID:   e.Expense.TemplateID,
	}))
}
