package expense_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func equalAmong(ids ...int64) []*expense.ParticipantInput {
	out := make([]*expense.ParticipantInput, len(ids))
	for i, id := range ids {
		out[i] = &expense.ParticipantInput{UserID: id}
	}
	return out
}

func shareAmounts(shares []split.Share) []money.Amount {
	out := make([]money.Amount, len(shares))
	for i, s := range shares {
		out[i] = s.Amount
	}
	return out
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		h         *household
		publisher *recordingPublisher
		service   *expense.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHousehold(ctx)
		publisher = &recordingPublisher{}
		service = expense.NewService(h.store.Expenses(), h.groups, split.NewSplitStrategyFactory(false), publisher)
	})

	Describe("CreateExpense", func() {
		It("splits evenly with the remainder going to the first participant", func() {
			result, err := service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:      h.groupID,
				Description:  "  Groceries ",
				Amount:       dec("10.00"),
				SplitType:    "EQUAL",
				Participants: equalAmong(h.alice, h.bob, h.carol),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Expense.Description).To(Equal("Groceries"))
			Expect(result.Expense.SplitType).To(Equal(split.SplitTypeEqual))
			Expect(shareAmounts(result.Shares)).To(Equal([]money.Amount{334, 333, 333}))
			Expect(result.Shares[0].Percent).To(Equal(money.Percent(3334)))
			Expect(result.Payments).To(Equal([]expense.Payment{{UserID: h.alice, Amount: 1000}}))

			stored, err := service.GetExpense(ctx, h.alice, result.Expense.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Shares).To(Equal(result.Shares))
			Expect(stored.Participants()).To(Equal([]int64{h.alice, h.bob, h.carol}))
		})

		It("publishes expense.created with the participants", func() {
			_, err := service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:      h.groupID,
				Description:  "Pizza",
				Amount:       dec("30"),
				SplitType:    "EQUAL",
				Participants: equalAmong(h.alice, h.bob),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.types()).To(Equal([]string{events.ExpenseCreated}))
			payload, ok := publisher.events[0].Payload.(events.ExpensePayload)
			Expect(ok).To(BeTrue())
			Expect(payload.Participants).To(Equal([]int64{h.alice, h.bob}))
			Expect(payload.Amount).To(Equal(money.Amount(3000)))
		})

		It("allocates percentage splits", func() {
			result, err := service.CreateExpense(ctx, h.bob, &expense.CreateExpenseRequest{
				GroupID:     h.groupID,
				Description: "Internet",
				Amount:      dec("50.00"),
				SplitType:   "PERCENTAGE",
				Participants: []*expense.ParticipantInput{
					{UserID: h.alice, Percentage: decPtr("30")},
					{UserID: h.bob, Percentage: decPtr("70")},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(shareAmounts(result.Shares)).To(Equal([]money.Amount{1500, 3500}))
			Expect(result.Shares[1].Percent).To(Equal(money.Percent(7000)))
		})

		It("accepts legacy split type names", func() {
			result, err := service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:     h.groupID,
				Description: "Taxi",
				Amount:      dec("12.00"),
				SplitType:   "exact",
				Participants: []*expense.ParticipantInput{
					{UserID: h.alice, Amount: decPtr("2.00")},
					{UserID: h.carol, Amount: decPtr("10.00")},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Expense.SplitType).To(Equal(split.SplitTypeCustom))
		})

		It("records the given payments when they add up", func() {
			result, err := service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:      h.groupID,
				Description:  "Dinner",
				Amount:       dec("90"),
				SplitType:    "EQUAL",
				Participants: equalAmong(h.alice, h.bob, h.carol),
				Payments: []*expense.PaymentInput{
					{UserID: h.bob, Amount: dec("60")},
					{UserID: h.carol, Amount: dec("30")},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Payments).To(ConsistOf(
				expense.Payment{UserID: h.bob, Amount: 6000},
				expense.Payment{UserID: h.carol, Amount: 3000},
			))
		})

		DescribeTable("rejects invalid requests without storing anything",
			func(mutate func(*expense.CreateExpenseRequest), actor func() int64, want error) {
				req := &expense.CreateExpenseRequest{
					GroupID:      h.groupID,
					Description:  "Rent",
					Amount:       dec("100.00"),
					SplitType:    "EQUAL",
					Participants: equalAmong(h.alice, h.bob),
				}
				mutate(req)

				_, err := service.CreateExpense(ctx, actor(), req)
				Expect(err).To(MatchError(want))

				_, total, err := service.ListExpensesByGroupID(ctx, h.alice, h.groupID, 1, 20)
				Expect(err).NotTo(HaveOccurred())
				Expect(total).To(BeZero())
				Expect(publisher.events).To(BeEmpty())
			},
			Entry("zero amount", func(r *expense.CreateExpenseRequest) { r.Amount = decimal.Zero }, func() int64 { return h.alice }, split.ErrInvalidAmount),
			Entry("blank description", func(r *expense.CreateExpenseRequest) { r.Description = "  " }, func() int64 { return h.alice }, expense.ErrDescriptionRequired),
			Entry("no participants", func(r *expense.CreateExpenseRequest) { r.Participants = nil }, func() int64 { return h.alice }, split.ErrNoParticipants),
			Entry("non-member participant", func(r *expense.CreateExpenseRequest) { r.Participants = equalAmong(h.alice, h.dave) }, func() int64 { return h.alice }, expense.ErrNotMember),
			Entry("non-member actor", func(*expense.CreateExpenseRequest) {}, func() int64 { return h.dave }, expense.ErrNotMember),
			Entry("duplicate participant", func(r *expense.CreateExpenseRequest) { r.Participants = equalAmong(h.alice, h.alice) }, func() int64 { return h.alice }, split.ErrDuplicateMember),
			Entry("unknown split type", func(r *expense.CreateExpenseRequest) { r.SplitType = "BY_SHARES" }, func() int64 { return h.alice }, split.ErrInvalidPolicy),
			Entry("custom amounts off by two cents", func(r *expense.CreateExpenseRequest) {
				r.SplitType = "CUSTOM"
				r.Participants = []*expense.ParticipantInput{
					{UserID: h.alice, Amount: decPtr("50.00")},
					{UserID: h.bob, Amount: decPtr("49.98")},
				}
			}, func() int64 { return h.alice }, split.ErrShareMismatch),
			Entry("payments short of the total", func(r *expense.CreateExpenseRequest) {
				r.Payments = []*expense.PaymentInput{{UserID: h.bob, Amount: dec("99.00")}}
			}, func() int64 { return h.alice }, expense.ErrPaymentMismatch),
		)

		It("reports expected and actual totals on a mismatch", func() {
			_, err := service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:     h.groupID,
				Description: "Rent",
				Amount:      dec("100.00"),
				SplitType:   "PERCENTAGE",
				Participants: []*expense.ParticipantInput{
					{UserID: h.alice, Percentage: decPtr("60")},
					{UserID: h.bob, Percentage: decPtr("30")},
				},
			})

			var mismatch *split.MismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Expected.Equal(dec("100"))).To(BeTrue())
			Expect(mismatch.Actual.Equal(dec("90"))).To(BeTrue())
		})

		It("fails for an unknown group", func() {
			_, err := service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:      9999,
				Description:  "Ghost",
				Amount:       dec("1"),
				SplitType:    "EQUAL",
				Participants: equalAmong(h.alice),
			})
			Expect(err).To(MatchError(group.ErrGroupNotFound))
		})
	})

	Describe("changing an expense", func() {
		var created *expense.ExpenseWithShares

		BeforeEach(func() {
			var err error
			created, err = service.CreateExpense(ctx, h.alice, &expense.CreateExpenseRequest{
				GroupID:      h.groupID,
				Description:  "Utilities",
				Amount:       dec("60.00"),
				SplitType:    "EQUAL",
				Participants: equalAmong(h.alice, h.bob, h.carol),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("moves a single payer's payment to the new amount", func() {
			amount := dec("61.00")
			updated, err := service.UpdateExpense(ctx, h.bob, created.Expense.ID, &expense.UpdateExpenseRequest{Amount: &amount})
			Expect(err).NotTo(HaveOccurred())

			Expect(updated.Expense.Amount).To(Equal(money.Amount(6100)))
			Expect(updated.Payments).To(Equal([]expense.Payment{{UserID: h.alice, Amount: 6100}}))
			Expect(shareAmounts(updated.Shares)).To(Equal([]money.Amount{2034, 2033, 2033}))
			Expect(publisher.types()).To(Equal([]string{events.ExpenseCreated, events.ExpenseUpdated}))
		})

		It("replaces participants and policy", func() {
			splitType := "CUSTOM"
			updated, err := service.UpdateExpense(ctx, h.alice, created.Expense.ID, &expense.UpdateExpenseRequest{
				SplitType: &splitType,
				Participants: []*expense.ParticipantInput{
					{UserID: h.alice, Amount: decPtr("10")},
					{UserID: h.carol, Amount: decPtr("50")},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Participants()).To(Equal([]int64{h.alice, h.carol}))

			stored, err := service.GetExpense(ctx, h.alice, created.Expense.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(shareAmounts(stored.Shares)).To(Equal([]money.Amount{1000, 5000}))
			Expect(stored.Expense.SplitType).To(Equal(split.SplitTypeCustom))
		})

		It("leaves the stored expense alone when the update is invalid", func() {
			splitType := "CUSTOM"
			_, err := service.UpdateExpense(ctx, h.alice, created.Expense.ID, &expense.UpdateExpenseRequest{
				SplitType: &splitType,
				Participants: []*expense.ParticipantInput{
					{UserID: h.alice, Amount: decPtr("10")},
				},
			})
			Expect(err).To(MatchError(split.ErrShareMismatch))

			stored, err := service.GetExpense(ctx, h.alice, created.Expense.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Shares).To(Equal(created.Shares))
		})

		It("redistributes without touching amount or payments", func() {
			result, err := service.RedistributeExpense(ctx, h.carol, created.Expense.ID, &expense.RedistributeRequest{
				SplitType: "PERCENTAGE",
				Participants: []*expense.ParticipantInput{
					{UserID: h.bob, Percentage: decPtr("25")},
					{UserID: h.carol, Percentage: decPtr("75")},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Expense.Amount).To(Equal(created.Expense.Amount))
			Expect(result.Payments).To(Equal(created.Payments))
			Expect(shareAmounts(result.Shares)).To(Equal([]money.Amount{1500, 4500}))
			Expect(publisher.types()).To(ContainElement(events.ExpenseRedistributed))
		})

		It("only lets the creator delete", func() {
			Expect(service.DeleteExpense(ctx, h.bob, created.Expense.ID)).To(MatchError(expense.ErrNotCreator))
			Expect(service.DeleteExpense(ctx, h.alice, created.Expense.ID)).To(Succeed())

			_, err := service.GetExpense(ctx, h.alice, created.Expense.ID)
			Expect(err).To(MatchError(expense.ErrExpenseNotFound))
			Expect(publisher.types()).To(Equal([]string{events.ExpenseCreated, events.ExpenseDeleted}))
		})

		It("hides the expense from users outside the group", func() {
			_, err := service.GetExpense(ctx, h.dave, created.Expense.ID)
			Expect(err).To(MatchError(expense.ErrAccessDenied))

			_, _, err = service.ListExpensesByGroupID(ctx, h.dave, h.groupID, 1, 20)
			Expect(err).To(MatchError(expense.ErrAccessDenied))

			stored, err := service.GetExpense(ctx, h.carol, created.Expense.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Expense.ID).To(Equal(created.Expense.ID))
		})

		It("returns not found for a missing expense", func() {
			_, err := service.RedistributeExpense(ctx, h.alice, 424242, &expense.RedistributeRequest{})
			Expect(err).To(MatchError(expense.ErrExpenseNotFound))
		})
	})

	Describe("PreviewSplit", func() {
		It("allocates without storing or publishing", func() {
			// 0.02 / 3 rounds to 0.01 each, so the first participant gives a cent back
			preview, err := service.PreviewSplit(&expense.PreviewRequest{
				Amount:       dec("0.02"),
				SplitType:    "EQUAL",
				Participants: equalAmong(1, 2, 3),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(shareAmounts(preview.Shares)).To(Equal([]money.Amount{0, 1, 1}))

			_, total, err := service.ListExpensesByGroupID(ctx, h.alice, h.groupID, 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
			Expect(publisher.events).To(BeEmpty())
		})

		It("returns zero shares for a zero amount", func() {
			preview, err := service.PreviewSplit(&expense.PreviewRequest{
				Amount:       decimal.Zero,
				SplitType:    "EQUAL",
				Participants: equalAmong(1, 2),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(shareAmounts(preview.Shares)).To(Equal([]money.Amount{0, 0}))
		})
	})
})
