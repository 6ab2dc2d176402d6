package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal"
)

var _ = Describe("AppError", func() {
	It("finds the code through wrapping", func() {
		err := fmt.Errorf("refresh: %w", internal.ErrSecurityBreach)

		Expect(internal.HasCode(err, internal.ErrCodeSecurityBreach)).To(BeTrue())
		Expect(internal.CodeOf(err)).To(Equal(internal.ErrCodeSecurityBreach))
		Expect(errors.Is(err, internal.ErrSecurityBreach)).To(BeTrue())
	})

	It("has no code for foreign errors", func() {
		Expect(internal.CodeOf(errors.New("boom"))).To(BeEmpty())
		Expect(internal.HasCode(nil, "")).To(BeFalse())
	})

	It("leaves sentinels untouched when adding a cause", func() {
		cause := errors.New("db down")
		wrapped := internal.ErrInvalidToken.WithCause(cause)

		Expect(errors.Is(wrapped, cause)).To(BeTrue())
		Expect(internal.ErrInvalidToken.Cause).To(BeNil())
		Expect(wrapped.Code).To(Equal(internal.ErrCodeInvalidToken))
	})

	It("keeps internal causes out of the response body", func() {
		err := internal.NewInternalError("failed to load session", errors.New("pq: connection refused"))

		status, body := err.ToHTTPResponse()
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(err.Error()).To(ContainSubstring("connection refused"))

		raw, marshalErr := jsonOf(body)
		Expect(marshalErr).NotTo(HaveOccurred())
		Expect(raw).To(ContainSubstring(`"code":"INTERNAL_ERROR"`))
		Expect(raw).NotTo(ContainSubstring("connection refused"))
	})

	It("uses the first field message as the error text", func() {
		err := internal.NewValidationFieldError("email", "email is required", internal.ErrCodeValidationFailed)

		Expect(err.Error()).To(Equal("email is required"))
		Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Client context", func() {
	It("reads the first forwarded hop", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		r.Header.Set("User-Agent", "ward-tablet")

		Expect(internal.ClientInfoFromRequest(r)).To(Equal(internal.ClientInfo{
			IPAddress: "203.0.113.7",
			UserAgent: "ward-tablet",
		}))
	})

	It("falls back to unknown", func() {
		client := internal.ClientFromContext(context.Background())
		Expect(client.IPAddress).To(Equal(internal.UnknownClientValue))
		Expect(client.UserAgent).To(Equal(internal.UnknownClientValue))
	})

	It("survives a detached context", func() {
		parent, cancel := context.WithCancel(internal.ContextWithClient(context.Background(), internal.NewClientInfo("10.0.0.2", "cli")))
		detached, release := internal.Detached(parent, time.Minute)
		defer release()

		cancel()
		Expect(detached.Err()).NotTo(HaveOccurred())
		Expect(internal.ClientFromContext(detached).IPAddress).To(Equal("10.0.0.2"))
	})
})

func jsonOf(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	return string(raw), err
}
