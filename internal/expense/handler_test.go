package expense_test

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
	"github.com/fkhayef/splitledger/pkg/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details *struct {
			What     string `json:"what"`
			Expected string `json:"expected"`
			Actual   string `json:"actual"`
		} `json:"details"`
	} `json:"error"`
}

type shareJSON struct {
	UserID     int64       `json:"user_id"`
	Amount     json.Number `json:"amount"`
	Percentage json.Number `json:"percentage"`
}

var _ = Describe("Handler", func() {
	var (
		h      *household
		router http.Handler
	)

	BeforeEach(func() {
		h = newHousehold(context.Background())
		service := expense.NewService(h.store.Expenses(), h.groups, split.NewSplitStrategyFactory(false), nil)
		router = middleware.TestUserMiddleware(expense.NewHandler(service).Routes())
	})

	do := func(method, path string, actor int64, body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User-ID", fmt.Sprint(actor))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var env envelope
		Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
		return rec, env
	}

	It("creates an expense and returns its shares", func() {
		body := fmt.Sprintf(`{"group_id":%d,"description":"Groceries","amount":"10.00","split_type":"EQUAL",
			"participants":[{"user_id":%d},{"user_id":%d},{"user_id":%d}]}`, h.groupID, h.alice, h.bob, h.carol)

		rec, env := do(http.MethodPost, "/", h.alice, body)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(env.Success).To(BeTrue())

		var data struct {
			ID     int64       `json:"id"`
			Amount json.Number `json:"amount"`
			Shares []shareJSON `json:"shares"`
		}
		Expect(json.Unmarshal(env.Data, &data)).To(Succeed())
		Expect(data.Amount.String()).To(Equal("10.00"))
		Expect(data.Shares).To(HaveLen(3))
		Expect(data.Shares[0].Amount.String()).To(Equal("3.34"))
		Expect(data.Shares[0].Percentage.String()).To(Equal("33.34"))
		Expect(data.Shares[2].Amount.String()).To(Equal("3.33"))

		rec, _ = do(http.MethodGet, fmt.Sprintf("/%d", data.ID), h.bob, "")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("answers a share mismatch with a coded 400", func() {
		body := fmt.Sprintf(`{"group_id":%d,"description":"Rent","amount":100,"split_type":"CUSTOM",
			"participants":[{"user_id":%d,"amount":50},{"user_id":%d,"amount":49.98}]}`, h.groupID, h.alice, h.bob)

		rec, env := do(http.MethodPost, "/", h.alice, body)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Success).To(BeFalse())
		Expect(env.Error.Code).To(Equal("SHARE_MISMATCH"))
		Expect(env.Error.Message).To(ContainSubstring("100.00"))
		Expect(env.Error.Message).To(ContainSubstring("99.98"))
		Expect(env.Error.Details).NotTo(BeNil())
		Expect(env.Error.Details.Expected).To(Equal("100.00"))
		Expect(env.Error.Details.Actual).To(Equal("99.98"))
	})

	It("answers a payment mismatch with a coded 400", func() {
		body := fmt.Sprintf(`{"group_id":%d,"description":"Rent","amount":100,"split_type":"EQUAL",
			"participants":[{"user_id":%d}],"payments":[{"user_id":%d,"amount":"98.00"}]}`, h.groupID, h.alice, h.bob)

		rec, env := do(http.MethodPost, "/", h.alice, body)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("PAYMENT_MISMATCH"))
		Expect(env.Error.Details.What).To(Equal("payments"))
		Expect(env.Error.Details.Expected).To(Equal("100.00"))
		Expect(env.Error.Details.Actual).To(Equal("98.00"))
	})

	It("previews a percentage split", func() {
		body := fmt.Sprintf(`{"amount":"50.00","split_type":"PERCENTAGE",
			"participants":[{"user_id":%d,"percentage":30},{"user_id":%d,"percentage":70}]}`, h.alice, h.bob)

		rec, env := do(http.MethodPost, "/preview", h.alice, body)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var data struct {
			Shares []shareJSON `json:"shares"`
		}
		Expect(json.Unmarshal(env.Data, &data)).To(Succeed())
		Expect(data.Shares[0].Amount.String()).To(Equal("15.00"))
		Expect(data.Shares[1].Amount.String()).To(Equal("35.00"))
	})

	It("returns 404 for a missing expense", func() {
		rec, env := do(http.MethodGet, "/9999", h.alice, "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(env.Error).NotTo(BeNil())
	})

	It("rejects a malformed id", func() {
		rec, _ := do(http.MethodGet, "/abc", h.alice, "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("forbids deleting someone else's expense", func() {
		created, err := expense.NewService(h.store.Expenses(), h.groups, split.NewSplitStrategyFactory(false), nil).
			CreateExpense(context.Background(), h.alice, &expense.CreateExpenseRequest{
				GroupID:      h.groupID,
				Description:  "Milk",
				Amount:       dec("2.40"),
				SplitType:    "EQUAL",
				Participants: equalAmong(h.alice, h.bob),
			})
		Expect(err).NotTo(HaveOccurred())

		rec, _ := do(http.MethodDelete, fmt.Sprintf("/%d", created.Expense.ID), h.bob, "")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("answers 403 when an outsider reads a group's expenses", func() {
		rec, env := do(http.MethodGet, fmt.Sprintf("/group/%d", h.groupID), h.dave, "")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(env.Error.Code).To(Equal("FORBIDDEN"))

		rec, _ = do(http.MethodGet, fmt.Sprintf("/group/%d", h.groupID), h.bob, "")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
