package notification_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/storage/memory"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		service *notification.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		service = notification.NewService(memory.New().Notifications())
	})

	created := func(templateID *int64) events.Event {
		return events.New(events.ExpenseCreated, events.ExpensePayload{
			ExpenseID:    5,
			GroupID:      2,
			ActorID:      1,
			Description:  "Groceries",
			Amount:       money.Amount(1234),
			Participants: []int64{1, 2, 3},
			TemplateID:   templateID,
		})
	}

	It("notifies every participant except the actor", func() {
		Expect(service.Publish(ctx, created(nil))).To(Succeed())

		Expect(service.GetUnreadCount(ctx, 1)).To(BeZero())
		for _, recipient := range []int64{2, 3} {
			list, total, err := service.ListByRecipientID(ctx, recipient, 1, 20, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(1))
			Expect(list[0].Type).To(Equal(notification.NotificationTypeExpenseAdded))
			Expect(list[0].Message).To(Equal(`"Groceries" (12.34) was added`))
			Expect(*list[0].ExpenseID).To(Equal(int64(5)))
		}
	})

	It("marks expenses from templates as recurring", func() {
		templateID := int64(9)
		Expect(service.Publish(ctx, created(&templateID))).To(Succeed())

		list, _, err := service.ListByRecipientID(ctx, 2, 1, 20, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(list[0].Type).To(Equal(notification.NotificationTypeRecurringAdded))
	})

	It("ignores events it does not understand", func() {
		Expect(service.Publish(ctx, events.New(events.RecurringMaterialized, events.MaterializedPayload{TemplateID: 1}))).To(Succeed())
		Expect(service.GetUnreadCount(ctx, 2)).To(BeZero())
	})

	It("lets only the recipient mark a notification read", func() {
		Expect(service.Publish(ctx, created(nil))).To(Succeed())
		list, _, err := service.ListByRecipientID(ctx, 2, 1, 20, true)
		Expect(err).NotTo(HaveOccurred())
		id := list[0].ID

		Expect(service.MarkAsRead(ctx, id, 3)).To(MatchError(notification.ErrNotRecipient))
		Expect(service.MarkAsRead(ctx, id, 2)).To(Succeed())
		Expect(service.GetUnreadCount(ctx, 2)).To(BeZero())

		Expect(service.MarkAllAsRead(ctx, 3)).To(Succeed())
		Expect(service.GetUnreadCount(ctx, 3)).To(BeZero())

		_, err = service.GetByID(ctx, 999)
		Expect(err).To(MatchError(notification.ErrNotificationNotFound))
	})
})
