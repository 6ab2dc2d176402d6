package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/transport"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(rec *httptest.ResponseRecorder) internal.ErrorCode {
	var body struct {
		Error struct {
			Code internal.ErrorCode `json:"code"`
		} `json:"error"`
	}
	gomega.Expect(json.NewDecoder(rec.Body).Decode(&body)).To(gomega.Succeed())
	return body.Error.Code
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		env     *testEnv
		handler *Handler
	)

	ginkgo.BeforeEach(func() {
		env = newTestEnv()
		env.addUser("user-1", "ana@simcasi.test", "role-admin")
		cookies := transport.NewCookieWriter(internal.CookieConfig{Secure: true, SameSite: "strict"})
		handler = NewHandler(env.service, cookies, 5*time.Second, logger.Discard())
	})

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("User-Agent", "handler-test")
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec
	}

	ginkgo.It("sets HTTP-only cookies on login", func() {
		rec := login(`{"email":"ana@simcasi.test","password":"` + testPassword + `"}`)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

		access := cookieNamed(rec, transport.AccessTokenCookie)
		gomega.Expect(access).NotTo(gomega.BeNil())
		gomega.Expect(access.HttpOnly).To(gomega.BeTrue())
		gomega.Expect(access.Secure).To(gomega.BeTrue())
		gomega.Expect(access.SameSite).To(gomega.Equal(http.SameSiteStrictMode))
		gomega.Expect(access.MaxAge).To(gomega.Equal(900))

		// without remember-me the refresh cookie dies with the browser
		refresh := cookieNamed(rec, transport.RefreshTokenCookie)
		gomega.Expect(refresh).NotTo(gomega.BeNil())
		gomega.Expect(refresh.MaxAge).To(gomega.Equal(0))

		gomega.Expect(rec.Body.String()).NotTo(gomega.ContainSubstring("password_hash"))
	})

	ginkgo.It("answers bad credentials with 401", func() {
		rec := login(`{"email":"ana@simcasi.test","password":"nope-nope"}`)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(decodeError(rec)).To(gomega.Equal(internal.ErrCodeInvalidCredentials))
	})

	ginkgo.It("answers a malformed body with 400", func() {
		rec := login(`{`)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.It("rotates through the refresh cookie", func() {
		first := env.login("ana@simcasi.test")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: transport.RefreshTokenCookie, Value: first.RefreshToken})
		rec := httptest.NewRecorder()
		handler.RefreshToken(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		refresh := cookieNamed(rec, transport.RefreshTokenCookie)
		gomega.Expect(refresh).NotTo(gomega.BeNil())
		gomega.Expect(refresh.Value).NotTo(gomega.Equal(first.RefreshToken))
	})

	ginkgo.It("clears cookies when the refresh token was replayed", func() {
		first := env.login("ana@simcasi.test")
		_, err := env.service.Refresh(env.ctx(), first.RefreshToken, env.client)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.Header.Set(transport.RefreshTokenHeader, first.RefreshToken)
		rec := httptest.NewRecorder()
		handler.RefreshToken(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(decodeError(rec)).To(gomega.Equal(internal.ErrCodeSecurityBreach))
		gomega.Expect(cookieNamed(rec, transport.AccessTokenCookie).MaxAge).To(gomega.BeNumerically("<", 0))
		gomega.Expect(cookieNamed(rec, transport.RefreshTokenCookie).MaxAge).To(gomega.BeNumerically("<", 0))
	})

	ginkgo.It("logs out with 204 even without credentials", func() {
		rec := httptest.NewRecorder()
		handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(cookieNamed(rec, transport.RefreshTokenCookie)).NotTo(gomega.BeNil())
	})

	ginkgo.It("revokes the session behind the presented tokens on logout", func() {
		first := env.login("ana@simcasi.test")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+first.AccessToken)
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(env.sessions.get(first.SessionID).IsDeleted()).To(gomega.BeTrue())
	})

	ginkgo.It("accepts forgot-password for any address", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/forgot", strings.NewReader(`{"email":"nobody@simcasi.test"}`))
		rec := httptest.NewRecorder()
		handler.ForgotPassword(rec, req)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusAccepted))
	})
})
