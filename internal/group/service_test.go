package group_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/internal/user"
	"github.com/fkhayef/splitledger/pkg/middleware"
)

var _ = Describe("Service", func() {
	var (
		ctx        context.Context
		service    *group.Service
		owner, pal int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		store := memory.New()
		service = group.NewService(store.Groups())

		for i, name := range []string{"owner", "pal"} {
			u, err := store.Users().Create(ctx, &user.RegisterRequest{Username: name, Email: name + "@example.com"})
			Expect(err).NotTo(HaveOccurred())
			if i == 0 {
				owner = u.ID
			} else {
				pal = u.ID
			}
		}
	})

	create := func() *group.Group {
		g, err := service.Create(ctx, owner, &group.CreateGroupRequest{Name: "Cabin", Currency: " eur "})
		Expect(err).NotTo(HaveOccurred())
		return g
	}

	It("normalizes the currency and defaults it to USD", func() {
		Expect(create().Currency).To(Equal("EUR"))

		g, err := service.Create(ctx, owner, &group.CreateGroupRequest{Name: "Bills"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Currency).To(Equal(group.DefaultCurrency))
	})

	It("makes the creator an admin member", func() {
		g := create()

		_, members, err := service.GetByIDWithMembers(ctx, g.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(members).To(HaveLen(1))
		Expect(members[0].Role).To(Equal(group.MemberRoleAdmin))
		Expect(members[0].Status).To(Equal(group.MemberStatusJoined))
		Expect(members[0].Username).To(Equal("owner"))
	})

	It("tracks membership", func() {
		g := create()

		invited, err := service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal})
		Expect(err).NotTo(HaveOccurred())
		Expect(invited.Status).To(Equal(group.MemberStatusInvited))
		_, err = service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal})
		Expect(err).To(MatchError(group.ErrMemberAlreadyExists))

		_, err = service.AcceptInvitation(ctx, g.ID, pal)
		Expect(err).NotTo(HaveOccurred())

		ids, err := service.ListMemberIDs(ctx, g.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]int64{owner, pal}))

		Expect(service.IsMember(ctx, g.ID, pal)).To(BeTrue())
		Expect(service.RemoveMember(ctx, g.ID, pal)).To(Succeed())
		Expect(service.IsMember(ctx, g.ID, pal)).To(BeFalse())
		Expect(service.RemoveMember(ctx, g.ID, pal)).To(MatchError(group.ErrMemberNotFound))
	})

	It("leaves an invited user out of the members until they accept", func() {
		g := create()
		_, err := service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal, Role: group.MemberRoleAdmin})
		Expect(err).NotTo(HaveOccurred())

		Expect(service.ListMemberIDs(ctx, g.ID)).To(Equal([]int64{owner}))
		Expect(service.IsMember(ctx, g.ID, pal)).To(BeFalse())
		// an invited admin cannot act as one yet
		Expect(service.Delete(ctx, g.ID, pal)).To(MatchError(group.ErrNotAuthorized))

		joined, err := service.AcceptInvitation(ctx, g.ID, pal)
		Expect(err).NotTo(HaveOccurred())
		Expect(joined.Status).To(Equal(group.MemberStatusJoined))
		Expect(service.IsMember(ctx, g.ID, pal)).To(BeTrue())

		again, err := service.AcceptInvitation(ctx, g.ID, pal)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Status).To(Equal(group.MemberStatusJoined))
	})

	It("refuses an acceptance without an invitation", func() {
		g := create()
		_, err := service.AcceptInvitation(ctx, g.ID, pal)
		Expect(err).To(MatchError(group.ErrNotInvited))
		_, err = service.AcceptInvitation(ctx, 777, pal)
		Expect(err).To(MatchError(group.ErrGroupNotFound))
	})

	It("changes only the role of a member", func() {
		g := create()
		_, err := service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal})
		Expect(err).NotTo(HaveOccurred())

		admin, joined := group.MemberRoleAdmin, group.MemberStatusJoined
		updated, err := service.UpdateMember(ctx, g.ID, pal, &group.UpdateMemberRequest{Role: &admin, Status: &joined})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Role).To(Equal(group.MemberRoleAdmin))
		Expect(updated.Status).To(Equal(group.MemberStatusInvited))

		_, err = service.UpdateMember(ctx, g.ID, pal, &group.UpdateMemberRequest{})
		Expect(err).To(MatchError(group.ErrInvalidRole))
	})

	It("rejects unknown roles", func() {
		g := create()
		_, err := service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal, Role: "OWNER"})
		Expect(err).To(MatchError(group.ErrInvalidRole))
	})

	It("reports a missing group", func() {
		_, err := service.ListMemberIDs(ctx, 777)
		Expect(err).To(MatchError(group.ErrGroupNotFound))
	})

	It("only lets admins delete", func() {
		g := create()
		_, err := service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal})
		Expect(err).NotTo(HaveOccurred())

		Expect(service.Delete(ctx, g.ID, pal)).To(MatchError(group.ErrNotAuthorized))
		Expect(service.Delete(ctx, g.ID, owner)).To(Succeed())

		_, err = service.GetByID(ctx, g.ID)
		Expect(err).To(MatchError(group.ErrGroupNotFound))
	})

	It("pages through a user's groups", func() {
		for range 3 {
			create()
		}
		groups, total, err := service.ListByUserID(ctx, owner, 2, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(3))
		Expect(groups).To(HaveLen(1))
	})

	Describe("Handler", func() {
		var router http.Handler

		BeforeEach(func() {
			router = middleware.TestUserMiddleware(group.NewHandler(service).Routes())
		})

		It("creates a group for the caller", func() {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Band","currency":"gbp"}`))
			req.Header.Set("X-Test-User-ID", fmt.Sprint(owner))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			var env struct {
				Data group.GroupResponse `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
			Expect(env.Data.Currency).To(Equal("GBP"))
			Expect(env.Data.CreatedBy).To(Equal(owner))
		})

		It("lets an invited user accept", func() {
			g := create()
			_, err := service.AddMember(ctx, g.ID, &group.AddMemberRequest{UserID: pal})
			Expect(err).NotTo(HaveOccurred())

			accept := func(caller int64) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/%d/accept", g.ID), nil)
				req.Header.Set("X-Test-User-ID", fmt.Sprint(caller))
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)
				return rec
			}

			rec := accept(pal)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var env struct {
				Data group.MemberResponse `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
			Expect(env.Data.Status).To(Equal(group.MemberStatusJoined))

			Expect(accept(pal + 100).Code).To(Equal(http.StatusNotFound))
		})

		It("requires a caller", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
