package recurring_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/recurring"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/internal/user"
	"github.com/fkhayef/splitledger/pkg/middleware"
)

var _ = Describe("Handler", func() {
	var (
		router  http.Handler
		groupID int64
		ana     int64
	)

	BeforeEach(func() {
		ctx := context.Background()
		store := memory.New()
		groups := group.NewService(store.Groups())
		expenses := expense.NewService(store.Expenses(), groups, split.NewSplitStrategyFactory(false), nil)
		processor := recurring.NewProcessor(store.Recurring(), expenses, nil)
		service := recurring.NewService(store.Recurring(), groups, expenses, processor)
		router = middleware.TestUserMiddleware(recurring.NewHandler(service).Routes())

		u, err := store.Users().Create(ctx, &user.RegisterRequest{Username: "ana", Email: "ana@example.com"})
		Expect(err).NotTo(HaveOccurred())
		ana = u.ID
		g, err := groups.Create(ctx, ana, &group.CreateGroupRequest{Name: "Home"})
		Expect(err).NotTo(HaveOccurred())
		groupID = g.ID
	})

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("X-Test-User-ID", fmt.Sprint(ana))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("creates a template and lists it for the group", func() {
		body := fmt.Sprintf(`{"group_id":%d,"description":"Gym","amount":"40.00","split_type":"EQUAL",
			"participants":[{"user_id":%d}],"frequency":"monthly","start_date":"2026-01-15"}`, groupID, ana)
		rec := send(http.MethodPost, "/", body)
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var created struct {
			Data recurring.TemplateResponse `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
		Expect(created.Data.NextExecutionDate).To(Equal("2026-01-15"))
		Expect(created.Data.Frequency).To(Equal(recurring.Monthly))

		rec = send(http.MethodGet, fmt.Sprintf("/group/%d", groupID), "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var listed struct {
			Data []recurring.TemplateResponse `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &listed)).To(Succeed())
		Expect(listed.Data).To(HaveLen(1))
	})

	It("rejects an unknown frequency", func() {
		body := fmt.Sprintf(`{"group_id":%d,"description":"Gym","amount":"40.00","split_type":"EQUAL",
			"participants":[{"user_id":%d}],"frequency":"fortnightly"}`, groupID, ana)
		Expect(send(http.MethodPost, "/", body).Code).To(Equal(http.StatusBadRequest))
	})

	It("runs the group's due templates", func() {
		rec := send(http.MethodPost, fmt.Sprintf("/group/%d/run", groupID), "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"processed":0`))
	})

	It("answers 403 when an outsider runs or lists a group's templates", func() {
		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodPost, fmt.Sprintf("/group/%d/run", groupID), nil),
			httptest.NewRequest(http.MethodGet, fmt.Sprintf("/group/%d", groupID), nil),
		} {
			req.Header.Set("X-Test-User-ID", fmt.Sprint(ana+100))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		}
	})

	It("returns 404 for a missing template", func() {
		Expect(send(http.MethodGet, "/12345", "").Code).To(Equal(http.StatusNotFound))
	})
})
