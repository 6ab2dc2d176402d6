package auth

import (
	"context"
	"log/slog"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal"
)

var _ = ginkgo.Describe("Gate", func() {
	var (
		perms *fakePermissions
		gate  *Gate
		ctx   context.Context
	)

	ginkgo.BeforeEach(func() {
		perms = &fakePermissions{byRole: map[string][]string{
			"role-admin":  {PermReadUser, PermDeleteUser},
			"role-viewer": {"read:patient"},
		}}
		gate = NewGate(NewPermissionResolver(perms), slog.Default())
		ctx = context.Background()
	})

	ginkgo.It("passes when no permission is required", func() {
		gomega.Expect(gate.Authorize(ctx, "role-viewer", nil)).To(gomega.Succeed())
		gomega.Expect(perms.calls).To(gomega.Equal(0))
	})

	ginkgo.It("passes when the role holds any one of the codes", func() {
		gomega.Expect(gate.Authorize(ctx, "role-admin", []string{PermCreateUser, PermDeleteUser})).To(gomega.Succeed())
	})

	ginkgo.It("refuses a role lacking every code", func() {
		err := gate.Authorize(ctx, "role-viewer", []string{PermReadUser})
		gomega.Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(gomega.BeTrue())
	})

	ginkgo.It("refuses an unknown role", func() {
		err := gate.Authorize(ctx, "role-gone", []string{PermReadUser})
		gomega.Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(gomega.BeTrue())
	})

	ginkgo.It("reads the store on every check", func() {
		gomega.Expect(gate.Authorize(ctx, "role-viewer", []string{PermReadUser})).NotTo(gomega.Succeed())

		// Given the role gains the permission
		perms.byRole["role-viewer"] = append(perms.byRole["role-viewer"], PermReadUser)

		// Then the next check sees it
		gomega.Expect(gate.Authorize(ctx, "role-viewer", []string{PermReadUser})).To(gomega.Succeed())
		gomega.Expect(perms.calls).To(gomega.Equal(2))
	})

	ginkgo.It("maps store failures to an internal error", func() {
		perms.err = errStore
		err := gate.Authorize(ctx, "role-admin", []string{PermReadUser})
		gomega.Expect(internal.HasCode(err, internal.ErrCodeInternal)).To(gomega.BeTrue())

		ok, err := gate.HasPermission(ctx, "role-admin", PermReadUser)
		gomega.Expect(err).To(gomega.MatchError(errStore))
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("PermissionResolver", func() {
	ginkgo.It("returns an empty list for a blank role", func() {
		resolver := NewPermissionResolver(&fakePermissions{})
		codes, err := resolver.PermissionCodes(context.Background(), "")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(codes).To(gomega.BeEmpty())
	})

	ginkgo.It("lists every seeded code once", func() {
		codes := AllPermissionCodes()
		gomega.Expect(codes).To(gomega.ContainElements("create:patient", PermDeleteUser, PermReadAuditLog))
		seen := map[string]bool{}
		for _, c := range codes {
			gomega.Expect(seen[c]).To(gomega.BeFalse(), c)
			seen[c] = true
		}
		gomega.Expect(ReadOnlyPermissionCodes()).To(gomega.ContainElement(PermReadUser))
	})
})

var _ = ginkgo.Describe("principal context", func() {
	ginkgo.It("round-trips the principal", func() {
		ctx := ContextWithPrincipal(context.Background(), Principal{UserID: "user-1"})
		p, ok := PrincipalFromContext(ctx)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(p.UserID).To(gomega.Equal("user-1"))

		_, ok = PrincipalFromContext(context.Background())
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})
