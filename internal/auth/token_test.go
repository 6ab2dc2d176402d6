package auth

import (
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal"
	"golang.org/x/crypto/bcrypt"
)

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var (
		now       *clock
		generator *JWTTokenGenerator
		claims    AccessClaims
	)

	ginkgo.BeforeEach(func() {
		now = &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
		generator = NewJWTTokenGenerator(testAccessSecret, testRefreshSecret, 15*time.Minute, 24*time.Hour, "simcasi", WithTokenClock(now.Now))
		claims = AccessClaims{UserID: "user-1", RoleID: "role-admin", RoleCode: "admin", SessionID: "session-1"}
	})

	ginkgo.It("round-trips access claims", func() {
		token, err := generator.GenerateAccessToken(claims)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		parsed, err := generator.VerifyAccessToken(token)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(parsed.UserID()).To(gomega.Equal("user-1"))
		gomega.Expect(parsed.RoleCode).To(gomega.Equal("admin"))
		gomega.Expect(parsed.SessionID).To(gomega.Equal("session-1"))
		gomega.Expect(parsed.ExpiresAt.Time).To(gomega.BeTemporally("==", now.Now().Add(15*time.Minute)))
	})

	ginkgo.It("separates expiry from other failures", func() {
		token, err := generator.GenerateAccessToken(claims)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		now.Advance(15*time.Minute + time.Second)
		_, err = generator.VerifyAccessToken(token)
		gomega.Expect(internal.HasCode(err, internal.ErrCodeTokenExpired)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects tokens signed with another secret", func() {
		other := NewJWTTokenGenerator("some-other-access-secret-0123456789", testRefreshSecret, 15*time.Minute, 24*time.Hour, "simcasi", WithTokenClock(now.Now))
		token, err := other.GenerateAccessToken(claims)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		_, err = generator.VerifyAccessToken(token)
		gomega.Expect(internal.HasCode(err, internal.ErrCodeInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("reports a forged expired token as invalid rather than expired", func() {
		other := NewJWTTokenGenerator("some-other-access-secret-0123456789", testRefreshSecret, 15*time.Minute, 24*time.Hour, "simcasi", WithTokenClock(now.Now))
		token, err := other.GenerateAccessToken(claims)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		now.Advance(time.Hour)
		_, err = generator.VerifyAccessToken(token)
		gomega.Expect(internal.HasCode(err, internal.ErrCodeInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects a token from another issuer", func() {
		other := NewJWTTokenGenerator(testAccessSecret, testRefreshSecret, 15*time.Minute, 24*time.Hour, "elsewhere", WithTokenClock(now.Now))
		token, err := other.GenerateAccessToken(claims)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		_, err = generator.VerifyAccessToken(token)
		gomega.Expect(internal.HasCode(err, internal.ErrCodeInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("keeps access and refresh tokens apart", func() {
		refresh, err := generator.GenerateRefreshToken(RefreshClaims{UserID: "user-1", SessionID: "session-1", RememberMe: true})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		access, err := generator.GenerateAccessToken(claims)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(generator.VerifyRefreshToken(access)).To(gomega.BeNil())
		_, err = generator.VerifyAccessToken(refresh)
		gomega.Expect(err).To(gomega.HaveOccurred())

		parsed := generator.VerifyRefreshToken(refresh)
		gomega.Expect(parsed).NotTo(gomega.BeNil())
		gomega.Expect(parsed.RememberMe).To(gomega.BeTrue())
		gomega.Expect(generator.VerifyToken(refresh)).NotTo(gomega.BeNil())
		gomega.Expect(generator.VerifyToken(access)).NotTo(gomega.BeNil())
	})

	ginkgo.It("returns nil for an expired refresh token", func() {
		refresh, err := generator.GenerateRefreshToken(RefreshClaims{UserID: "user-1", SessionID: "session-1"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		now.Advance(25 * time.Hour)
		gomega.Expect(generator.VerifyRefreshToken(refresh)).To(gomega.BeNil())
	})

	ginkgo.It("reports lifetimes in seconds", func() {
		gomega.Expect(generator.AccessExpirationSeconds()).To(gomega.Equal(int64(900)))
		gomega.Expect(generator.RefreshExpirationSeconds()).To(gomega.Equal(int64(86400)))
		gomega.Expect(generator.RefreshExpiryDate()).To(gomega.Equal(now.Now().Add(24 * time.Hour)))
	})
})

var _ = ginkgo.Describe("BcryptHasher", func() {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	ginkgo.It("matches the original password only", func() {
		digest, err := hasher.Hash("s3cret-value")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(digest).NotTo(gomega.Equal("s3cret-value"))

		ok, err := hasher.Compare("s3cret-value", digest)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())

		ok, err = hasher.Compare("wrong-value", digest)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("reports a malformed digest as an error", func() {
		ok, err := hasher.Compare("s3cret-value", "not-a-bcrypt-digest")
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("falls back to the default cost when given nonsense", func() {
		gomega.Expect(NewBcryptHasher(99).cost).To(gomega.Equal(bcrypt.DefaultCost))
	})
})
