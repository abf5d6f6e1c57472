package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fkhayef/splitledger/internal/auth"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/internal/user"
	"github.com/fkhayef/splitledger/pkg/middleware"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		tokens  *auth.JWTManager
		service *user.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		tokens = auth.NewJWTManager("0123456789abcdef-test", time.Hour)
		service = user.NewService(memory.New().Users(), tokens)
	})

	Describe("Register", func() {
		It("normalizes the email and issues a token for the new user", func() {
			u, token, err := service.Register(ctx, &user.RegisterRequest{Username: "  alice ", Email: " Alice@Example.COM "})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Username).To(Equal("alice"))
			Expect(u.Email).To(Equal("alice@example.com"))

			Expect(tokens.Validate(token)).To(Equal(u.ID))
		})

		It("rejects a second account with the same email", func() {
			_, _, err := service.Register(ctx, &user.RegisterRequest{Username: "alice", Email: "alice@example.com"})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = service.Register(ctx, &user.RegisterRequest{Username: "alice2", Email: "ALICE@example.com"})
			Expect(err).To(MatchError(user.ErrEmailAlreadyInUse))
		})

		DescribeTable("rejects invalid input",
			func(req user.RegisterRequest, want error) {
				_, _, err := service.Register(ctx, &req)
				Expect(err).To(MatchError(want))
			},
			Entry("short username", user.RegisterRequest{Username: "al", Email: "al@example.com"}, user.ErrInvalidUsername),
			Entry("malformed email", user.RegisterRequest{Username: "alice", Email: "not-an-email"}, user.ErrInvalidEmail),
		)
	})

	It("updates and looks up users", func() {
		u, _, err := service.Register(ctx, &user.RegisterRequest{Username: "bob", Email: "bob@example.com"})
		Expect(err).NotTo(HaveOccurred())

		name := "robert"
		updated, err := service.Update(ctx, u.ID, &user.UpdateUserRequest{Username: &name})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Username).To(Equal("robert"))

		_, err = service.GetByID(ctx, u.ID+100)
		Expect(err).To(MatchError(user.ErrUserNotFound))

		Expect(service.Delete(ctx, u.ID)).To(Succeed())
		Expect(service.Delete(ctx, u.ID)).To(MatchError(user.ErrUserNotFound))
	})
})

var _ = Describe("Handler", func() {
	var router http.Handler

	BeforeEach(func() {
		tokens := auth.NewJWTManager("0123456789abcdef-test", time.Hour)
		handler := user.NewHandler(user.NewService(memory.New().Users(), tokens))
		router = handler.Routes(middleware.AuthMiddleware(tokens))
	})

	It("registers publicly and authenticates with the issued token", func() {
		body, _ := json.Marshal(map[string]string{"username": "carol", "email": "carol@example.com"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var created struct {
			Data user.RegisterResponse `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
		Expect(created.Data.Token).NotTo(BeEmpty())

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+created.Data.Token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"carol@example.com"`))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("answers a duplicate registration with 409", func() {
		body, _ := json.Marshal(map[string]string{"username": "dave", "email": "dave@example.com"})
		for _, want := range []int{http.StatusCreated, http.StatusConflict} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
			Expect(rec.Code).To(Equal(want))
		}
	})
})
