package balance

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/money"
)

var (
	ErrNotMember    = errors.New("user is not a member of the group")
	ErrAccessDenied = errors.New("only group members can see its balances")
)

// Store reads the raw payment and share rows of a group
type Store interface {
	ListPaymentRows(ctx context.Context, groupID int64) ([]Row, error)
	ListShareRows(ctx context.Context, groupID int64) ([]Row, error)
}

// Membership lists the members of a group
type Membership interface {
	ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// Service computes balance reports
type Service struct {
	repo    Store
	members Membership
}

// NewService creates a new balance service
func NewService(repo Store, members Membership) *Service {
	return &Service{repo: repo, members: members}
}

// GroupBalances returns every member's balance ordered by user id. The actor must be a
// member. Only failures to read members, payments or shares fail the report; malformed
// stored amounts count as zero.
func (s *Service) GroupBalances(ctx context.Context, actorID, groupID int64) ([]*Balance, error) {
	var (
		members          []int64
		payments, shares []Row
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		members, err = s.members.ListMemberIDs(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		payments, err = s.repo.ListPaymentRows(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		shares, err = s.repo.ListShareRows(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !slices.Contains(members, actorID) {
		return nil, ErrAccessDenied
	}

	balances := Aggregate(members, toEntries(ctx, groupID, payments), toEntries(ctx, groupID, shares))
	return Sorted(balances), nil
}

// UserBalance returns one member's balance in the group
func (s *Service) UserBalance(ctx context.Context, actorID, groupID, userID int64) (*Balance, error) {
	balances, err := s.GroupBalances(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		if b.UserID == userID {
			return b, nil
		}
	}
	return nil, ErrNotMember
}

func toEntries(ctx context.Context, groupID int64, rows []Row) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		amount, ok := money.ParseLenient(row.Amount)
		if !ok {
			metrics.BalanceRowsCoerced.Inc()
			slog.WarnContext(ctx, "Counting unparseable amount as zero",
				"group_id", groupID,
				"user_id", row.UserID,
				"amount", row.Amount)
		}
		entries = append(entries, Entry{UserID: row.UserID, Amount: amount})
	}
	return entries
}
