package recurring_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/recurring"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/internal/user"
)

var _ = Describe("Recurring expenses", func() {
	var (
		ctx       context.Context
		store     *memory.State
		groups    *group.Service
		expenses  *expense.Service
		publisher *recordingPublisher
		processor *recurring.Processor
		service   *recurring.Service
		groupID   int64
		kim, lee  int64
		outsider  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.New()
		publisher = &recordingPublisher{}
		groups = group.NewService(store.Groups())
		expenses = expense.NewService(store.Expenses(), groups, split.NewSplitStrategyFactory(false), publisher)
		processor = recurring.NewProcessor(store.Recurring(), expenses, publisher)
		service = recurring.NewService(store.Recurring(), groups, expenses, processor)

		register := func(name string) int64 {
			u, err := store.Users().Create(ctx, &user.RegisterRequest{Username: name, Email: name + "@example.com"})
			Expect(err).NotTo(HaveOccurred())
			return u.ID
		}
		kim, lee, outsider = register("kim"), register("lee"), register("outsider")

		g, err := groups.Create(ctx, kim, &group.CreateGroupRequest{Name: "Studio"})
		Expect(err).NotTo(HaveOccurred())
		groupID = g.ID
		_, err = groups.AddMember(ctx, groupID, &group.AddMemberRequest{UserID: lee})
		Expect(err).NotTo(HaveOccurred())
		_, err = groups.AcceptInvitation(ctx, groupID, lee)
		Expect(err).NotTo(HaveOccurred())
	})

	rent := func(frequency, start, end string) *recurring.CreateTemplateRequest {
		return &recurring.CreateTemplateRequest{
			GroupID:     groupID,
			Description: "Rent",
			Amount:      decimal.RequireFromString("1200.00"),
			SplitType:   "EQUAL",
			Participants: []*expense.ParticipantInput{
				{UserID: kim},
				{UserID: lee},
			},
			Frequency: frequency,
			StartDate: start,
			EndDate:   end,
		}
	}

	Describe("Create", func() {
		It("schedules the first occurrence on the start date", func() {
			t, err := service.Create(ctx, kim, rent("monthly", "2026-01-31", ""))
			Expect(err).NotTo(HaveOccurred())

			Expect(t.Frequency).To(Equal(recurring.Monthly))
			Expect(t.PayerID).To(Equal(kim))
			Expect(t.NextExecutionDate).To(BeTemporally("==", date("2026-01-31")))
			Expect(t.Active).To(BeTrue())
			Expect(t.SplitType).To(Equal(split.SplitTypeEqual))
		})

		DescribeTable("rejects templates that could never run",
			func(mutate func(*recurring.CreateTemplateRequest), want error) {
				req := rent("WEEKLY", "2026-02-01", "")
				mutate(req)
				_, err := service.Create(ctx, kim, req)
				Expect(err).To(MatchError(want))
			},
			Entry("unknown frequency", func(r *recurring.CreateTemplateRequest) { r.Frequency = "HOURLY" }, recurring.ErrInvalidFrequency),
			Entry("malformed date", func(r *recurring.CreateTemplateRequest) { r.StartDate = "01/02/2026" }, recurring.ErrInvalidDate),
			Entry("end before start", func(r *recurring.CreateTemplateRequest) { r.EndDate = "2026-01-01" }, recurring.ErrEndBeforeStart),
			Entry("zero amount", func(r *recurring.CreateTemplateRequest) { r.Amount = decimal.Zero }, split.ErrInvalidAmount),
			Entry("outside payer", func(r *recurring.CreateTemplateRequest) { r.PayerID = outsider }, recurring.ErrNotMember),
			Entry("custom amounts that do not add up", func(r *recurring.CreateTemplateRequest) {
				a, b := decimal.RequireFromString("600"), decimal.RequireFromString("500")
				r.SplitType = "CUSTOM"
				r.Participants = []*expense.ParticipantInput{{UserID: kim, Amount: &a}, {UserID: lee, Amount: &b}}
			}, split.ErrShareMismatch),
		)

		It("only lets the creator delete", func() {
			t, err := service.Create(ctx, kim, rent("", "2026-02-01", ""))
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Delete(ctx, lee, t.ID)).To(MatchError(recurring.ErrNotCreator))
			Expect(service.Delete(ctx, kim, t.ID)).To(Succeed())

			_, err = service.GetByID(ctx, kim, t.ID)
			Expect(err).To(MatchError(recurring.ErrTemplateNotFound))
		})
	})

	Describe("ProcessDue", func() {
		It("creates the expense and advances the month on the start day", func() {
			t, err := service.Create(ctx, kim, rent("MONTHLY", "2026-01-31", ""))
			Expect(err).NotTo(HaveOccurred())

			processed, err := processor.ProcessDue(ctx, date("2026-01-31"))
			Expect(err).NotTo(HaveOccurred())
			Expect(processed).To(Equal(1))

			list, total, err := expenses.ListExpensesByGroupID(ctx, kim, groupID, 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(1))
			Expect(*list[0].TemplateID).To(Equal(t.ID))
			Expect(list[0].Amount).To(Equal(money.Amount(120000)))

			stored, err := service.GetByID(ctx, kim, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.NextExecutionDate).To(BeTemporally("==", date("2026-02-28")))

			_, err = processor.ProcessDue(ctx, date("2026-02-28"))
			Expect(err).NotTo(HaveOccurred())
			stored, err = service.GetByID(ctx, kim, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.NextExecutionDate).To(BeTemporally("==", date("2026-03-31")))

			materialized := publisher.ofType(events.RecurringMaterialized)
			Expect(materialized).To(HaveLen(2))
			payload := materialized[0].Payload.(events.MaterializedPayload)
			Expect(payload.TemplateID).To(Equal(t.ID))
			Expect(payload.NextExecutionDate).To(Equal("2026-02-28"))
		})

		It("materializes one occurrence per run when behind", func() {
			_, err := service.Create(ctx, kim, rent("DAILY", "2026-03-01", ""))
			Expect(err).NotTo(HaveOccurred())

			Expect(processor.ProcessDue(ctx, date("2026-03-05"))).To(Equal(1))
			Expect(processor.ProcessDue(ctx, date("2026-03-05"))).To(Equal(1))

			_, total, err := expenses.ListExpensesByGroupID(ctx, kim, groupID, 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(2))
		})

		It("does nothing before the start date", func() {
			_, err := service.Create(ctx, kim, rent("WEEKLY", "2026-06-01", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(processor.ProcessDue(ctx, date("2026-05-31"))).To(BeZero())
		})

		It("deactivates a template after its last occurrence", func() {
			t, err := service.Create(ctx, kim, rent("DAILY", "2026-03-01", "2026-03-02"))
			Expect(err).NotTo(HaveOccurred())

			Expect(processor.ProcessDue(ctx, date("2026-03-01"))).To(Equal(1))
			Expect(processor.ProcessDue(ctx, date("2026-03-02"))).To(Equal(1))

			stored, err := service.GetByID(ctx, kim, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Active).To(BeFalse())
			Expect(processor.ProcessDue(ctx, date("2026-03-03"))).To(BeZero())
		})

		It("keeps a failing template due and carries on", func() {
			failing, err := service.Create(ctx, kim, rent("DAILY", "2026-03-01", ""))
			Expect(err).NotTo(HaveOccurred())
			healthy := rent("DAILY", "2026-03-01", "")
			healthy.Participants = []*expense.ParticipantInput{{UserID: kim}}
			_, err = service.Create(ctx, kim, healthy)
			Expect(err).NotTo(HaveOccurred())

			Expect(groups.RemoveMember(ctx, groupID, lee)).To(Succeed())

			Expect(processor.ProcessDue(ctx, date("2026-03-01"))).To(Equal(1))

			stored, err := service.GetByID(ctx, kim, failing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.NextExecutionDate).To(BeTemporally("==", date("2026-03-01")))
			Expect(stored.Active).To(BeTrue())
		})

		It("charges one occurrence once when two runs overlap", func() {
			_, err := service.Create(ctx, kim, rent("MONTHLY", "2026-01-01", ""))
			Expect(err).NotTo(HaveOccurred())

			// both runs list the template as due before either one creates the expense
			gate := &gatedStore{Store: store.Recurring()}
			gate.listed.Add(2)
			first := recurring.NewProcessor(gate, expenses, publisher)
			second := recurring.NewProcessor(gate, expenses, publisher)

			var wg sync.WaitGroup
			counts := make([]int, 2)
			for i, p := range []*recurring.Processor{first, second} {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					n, err := p.ProcessDue(ctx, date("2026-01-01"))
					Expect(err).NotTo(HaveOccurred())
					counts[i] = n
				}()
			}
			wg.Wait()

			Expect(counts[0] + counts[1]).To(Equal(1))
			_, total, err := expenses.ListExpensesByGroupID(ctx, kim, groupID, 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(1))
			Expect(publisher.ofType(events.RecurringMaterialized)).To(HaveLen(1))
		})

		It("runs on demand through the service", func() {
			_, err := service.Create(ctx, kim, rent("WEEKLY", "2020-01-01", ""))
			Expect(err).NotTo(HaveOccurred())

			processed, err := service.RunNow(ctx, kim, groupID)
			Expect(err).NotTo(HaveOccurred())
			Expect(processed).To(Equal(1))
		})

		It("runs only the caller's group on demand", func() {
			_, err := service.Create(ctx, kim, rent("WEEKLY", "2020-01-01", ""))
			Expect(err).NotTo(HaveOccurred())

			other, err := groups.Create(ctx, outsider, &group.CreateGroupRequest{Name: "Elsewhere"})
			Expect(err).NotTo(HaveOccurred())
			theirs := rent("WEEKLY", "2020-01-01", "")
			theirs.GroupID = other.ID
			theirs.Participants = []*expense.ParticipantInput{{UserID: outsider}}
			foreign, err := service.Create(ctx, outsider, theirs)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RunNow(ctx, outsider, groupID)
			Expect(err).To(MatchError(recurring.ErrAccessDenied))

			Expect(service.RunNow(ctx, kim, groupID)).To(Equal(1))

			stored, err := service.GetByID(ctx, outsider, foreign.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.NextExecutionDate).To(BeTemporally("==", date("2020-01-01")))
			_, total, err := expenses.ListExpensesByGroupID(ctx, outsider, other.ID, 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})

		It("hides templates from users outside the group", func() {
			t, err := service.Create(ctx, kim, rent("WEEKLY", "2026-02-01", ""))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.GetByID(ctx, outsider, t.ID)
			Expect(err).To(MatchError(recurring.ErrAccessDenied))
			_, err = service.ListByGroupID(ctx, outsider, groupID)
			Expect(err).To(MatchError(recurring.ErrAccessDenied))

			list, err := service.ListByGroupID(ctx, lee, groupID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
		})
	})
})

// gatedStore holds every ListDue caller until all expected callers have listed.
type gatedStore struct {
	recurring.Store
	listed sync.WaitGroup
}

func (g *gatedStore) ListDue(ctx context.Context, today time.Time) ([]*recurring.Template, error) {
	templates, err := g.Store.ListDue(ctx, today)
	g.listed.Done()
	g.listed.Wait()
	return templates, err
}
