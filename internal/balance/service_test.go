package balance_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/balance"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/internal/user"
	"github.com/fkhayef/splitledger/pkg/middleware"
)

// stubRows serves fixed rows, or fails
type stubRows struct {
	payments, shares []balance.Row
	err              error
}

func (s *stubRows) ListPaymentRows(context.Context, int64) ([]balance.Row, error) {
	return s.payments, s.err
}

func (s *stubRows) ListShareRows(context.Context, int64) ([]balance.Row, error) {
	return s.shares, s.err
}

type staticMembers []int64

func (m staticMembers) ListMemberIDs(context.Context, int64) ([]int64, error) {
	return m, nil
}

var _ = Describe("Service", func() {
	ctx := context.Background()

	Context("with stored rows", func() {
		It("treats malformed amounts as zero and skips non-members", func() {
			rows := &stubRows{
				payments: []balance.Row{
					{UserID: 1, Amount: "30.00"},
					{UserID: 2, Amount: "not-a-number"},
					{UserID: 9, Amount: "100.00"},
				},
				shares: []balance.Row{
					{UserID: 1, Amount: "15.00"},
					{UserID: 2, Amount: "15.00"},
					{UserID: 9, Amount: "100.00"},
				},
			}
			service := balance.NewService(rows, staticMembers{2, 1})

			balances, err := service.GroupBalances(ctx, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(balances).To(HaveLen(2))

			Expect(balances[0].UserID).To(Equal(int64(1)))
			Expect(balances[0].Balance).To(Equal(money.Amount(1500)))
			Expect(balances[0].Message()).To(Equal("is owed 15.00"))

			Expect(balances[1].TotalPaid).To(BeZero())
			Expect(balances[1].Message()).To(Equal("owes 15.00"))
		})

		It("fails when rows cannot be read", func() {
			boom := errors.New("connection reset")
			service := balance.NewService(&stubRows{err: boom}, staticMembers{1})

			_, err := service.GroupBalances(ctx, 1, 1)
			Expect(err).To(MatchError(boom))
		})

		It("reports members without activity as settled", func() {
			service := balance.NewService(&stubRows{}, staticMembers{4})

			b, err := service.UserBalance(ctx, 4, 1, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Message()).To(Equal("settled up"))

			_, err = service.UserBalance(ctx, 4, 1, 5)
			Expect(err).To(MatchError(balance.ErrNotMember))
		})

		It("refuses a report to someone outside the group", func() {
			service := balance.NewService(&stubRows{}, staticMembers{4})

			_, err := service.GroupBalances(ctx, 5, 1)
			Expect(err).To(MatchError(balance.ErrAccessDenied))

			_, err = service.UserBalance(ctx, 5, 1, 4)
			Expect(err).To(MatchError(balance.ErrAccessDenied))
		})
	})

	Context("over recorded expenses", func() {
		var (
			store    *memory.State
			groups   *group.Service
			expenses *expense.Service
			service  *balance.Service
			groupID  int64
			ids      []int64
		)

		BeforeEach(func() {
			store = memory.New()
			groups = group.NewService(store.Groups())
			expenses = expense.NewService(store.Expenses(), groups, split.NewSplitStrategyFactory(false), nil)
			service = balance.NewService(store.Balances(), groups)

			ids = nil
			for _, name := range []string{"ana", "ben", "cy"} {
				u, err := store.Users().Create(ctx, &user.RegisterRequest{Username: name, Email: name + "@example.com"})
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, u.ID)
			}
			g, err := groups.Create(ctx, ids[0], &group.CreateGroupRequest{Name: "Trip"})
			Expect(err).NotTo(HaveOccurred())
			groupID = g.ID
			for _, id := range ids[1:] {
				_, err := groups.AddMember(ctx, groupID, &group.AddMemberRequest{UserID: id})
				Expect(err).NotTo(HaveOccurred())
				_, err = groups.AcceptInvitation(ctx, groupID, id)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		spend := func(payer int64, amount string, among ...int64) {
			participants := make([]*expense.ParticipantInput, len(among))
			for i, id := range among {
				participants[i] = &expense.ParticipantInput{UserID: id}
			}
			_, err := expenses.CreateExpense(ctx, payer, &expense.CreateExpenseRequest{
				GroupID:      groupID,
				Description:  "spend",
				Amount:       decimal.RequireFromString(amount),
				SplitType:    "EQUAL",
				Participants: participants,
			})
			Expect(err).NotTo(HaveOccurred())
		}

		It("nets payments against shares and sums to zero", func() {
			spend(ids[0], "10.00", ids...)
			spend(ids[1], "7.01", ids[1], ids[2])
			spend(ids[2], "0.05", ids...)

			balances, err := service.GroupBalances(ctx, ids[0], groupID)
			Expect(err).NotTo(HaveOccurred())

			var sum money.Amount
			for _, b := range balances {
				Expect(b.Balance).To(Equal(b.TotalPaid - b.TotalOwed))
				sum += b.Balance
			}
			Expect(sum).To(BeZero())

			// ana paid 10.00 and owes 3.34 + 0.01; 0.05 / 3 rounds up to 0.02, so ana gives a cent back
			Expect(balances[0].TotalOwed).To(Equal(money.Amount(335)))
			Expect(balances[0].Balance).To(Equal(money.Amount(665)))
		})

		It("drops a removed member from the report", func() {
			spend(ids[0], "9.00", ids...)
			Expect(groups.RemoveMember(ctx, groupID, ids[2])).To(Succeed())

			balances, err := service.GroupBalances(ctx, ids[0], groupID)
			Expect(err).NotTo(HaveOccurred())
			Expect(balances).To(HaveLen(2))
		})

		It("serves the report over HTTP", func() {
			spend(ids[0], "10.00", ids...)

			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/group/%d/user/%d", groupID, ids[1]), nil)
			req.Header.Set("X-Test-User-ID", fmt.Sprint(ids[1]))
			rec := httptest.NewRecorder()
			middleware.TestUserMiddleware(balance.NewHandler(service).Routes()).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var env struct {
				Data struct {
					Balance json.Number `json:"balance"`
					Message string      `json:"message"`
				} `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
			Expect(env.Data.Balance.String()).To(Equal("-3.33"))
			Expect(env.Data.Message).To(Equal("owes 3.33"))
		})

		It("answers 403 over HTTP to a user outside the group", func() {
			outsider, err := store.Users().Create(ctx, &user.RegisterRequest{Username: "dee", Email: "dee@example.com"})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/group/%d", groupID), nil)
			req.Header.Set("X-Test-User-ID", fmt.Sprint(outsider.ID))
			rec := httptest.NewRecorder()
			middleware.TestUserMiddleware(balance.NewHandler(service).Routes()).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})
})
