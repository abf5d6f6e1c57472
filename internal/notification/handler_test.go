package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/pkg/middleware"
)

var _ = Describe("Handler", func() {
	var router chi.Router

	BeforeEach(func() {
		service := notification.NewService(memory.New().Notifications())
		Expect(service.Publish(context.Background(), events.New(events.ExpenseDeleted, events.ExpensePayload{
			ExpenseID:    1,
			GroupID:      1,
			ActorID:      1,
			Description:  "Taxi",
			Amount:       900,
			Participants: []int64{1, 2},
		}))).To(Succeed())

		router = chi.NewRouter()
		router.Use(middleware.TestUserMiddleware)
		router.Mount("/notifications", notification.NewHandler(service).Routes())
	})

	do := func(method, path string, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if userID != "" {
			req.Header.Set("X-Test-User-ID", userID)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	unread := func(userID string) int {
		rec := do(http.MethodGet, "/notifications/unread-count", userID)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var body struct {
			Data struct {
				UnreadCount int `json:"unread_count"`
			} `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Data.UnreadCount
	}

	It("counts and clears unread notifications", func() {
		Expect(unread("2")).To(Equal(1))
		Expect(unread("1")).To(Equal(0))

		Expect(do(http.MethodPost, "/notifications/read-all", "2").Code).To(Equal(http.StatusOK))
		Expect(unread("2")).To(Equal(0))
	})

	It("lists the caller's notifications", func() {
		rec := do(http.MethodGet, "/notifications?unread_only=true", "2")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"EXPENSE_DELETED"`))
		Expect(rec.Body.String()).To(ContainSubstring(`\"Taxi\" (9.00) was deleted`))
	})

	It("rejects marking someone else's notification", func() {
		Expect(do(http.MethodPost, "/notifications/1/read", "1").Code).To(Equal(http.StatusForbidden))
		Expect(do(http.MethodPost, "/notifications/99/read", "2").Code).To(Equal(http.StatusNotFound))
		Expect(do(http.MethodPost, "/notifications/abc/read", "2").Code).To(Equal(http.StatusBadRequest))
	})

	It("requires a user", func() {
		Expect(do(http.MethodGet, "/notifications", "").Code).To(Equal(http.StatusUnauthorized))
	})
})
