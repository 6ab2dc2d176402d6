package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal/transport/middleware"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

// zeroReader yields size zero bytes and counts how many were consumed.
type zeroReader struct {
	size int64
	read int64
}

func (z *zeroReader) Read(p []byte) (int, error) {
	if z.read >= z.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if left := z.size - z.read; n > left {
		n = left
	}
	clear(p[:n])
	z.read += n
	return int(n), nil
}

var _ = Describe("LoggingMiddleware", func() {
	var out *bytes.Buffer

	serve := func(level slog.Level, req *http.Request, next http.Handler) *httptest.ResponseRecorder {
		out = &bytes.Buffer{}
		lg := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
		req = req.WithContext(logger.WithLogger(req.Context(), lg))

		rec := httptest.NewRecorder()
		middleware.LoggingMiddleware(next).ServeHTTP(rec, req)
		return rec
	}

	It("leaves the body alone when debug logging is off", func() {
		body := &zeroReader{size: 64 << 20}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)

		serve(slog.LevelInfo, req, ok)

		Expect(body.read).To(BeZero())
		Expect(out.String()).To(ContainSubstring(`"msg":"response"`))
	})

	It("reads only the head of a large body at debug level", func() {
		body := &zeroReader{size: 64 << 20}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)

		serve(slog.LevelDebug, req, ok)

		Expect(body.read).To(BeNumerically("<=", 4<<10))
		Expect(out.String()).To(ContainSubstring(`"body_truncated":true`))
	})

	It("still hands the handler the whole body", func() {
		payload := strings.Repeat("a", 10000)
		var seen int
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			seen = len(raw)
		})

		serve(slog.LevelDebug, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)), next)

		Expect(seen).To(Equal(len(payload)))
	})

	It("keeps identifiers but filters secrets", func() {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"session_id":"s-42","access_token":"eyJ.secret.sig"}`))
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"nurse@simcasi.test","password":"hunter2","session":"raw-session","key":"k-1"}`))
		req.Header.Set("Cookie", "refresh_token=r-1")
		req.Header.Set("X-Refresh-Token", "r-2")

		rec := serve(slog.LevelDebug, req, next)

		Expect(rec.Body.String()).To(ContainSubstring("eyJ.secret.sig"))
		logged := out.String()
		Expect(logged).To(ContainSubstring("nurse@simcasi.test"))
		Expect(logged).To(ContainSubstring("s-42"))
		for _, secret := range []string{"hunter2", "raw-session", "k-1", "r-1", "r-2", "eyJ.secret.sig"} {
			Expect(logged).NotTo(ContainSubstring(secret))
		}
	})

	It("reports the full response size without buffering it", func() {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i := 0; i < 100; i++ {
				_, _ = w.Write(bytes.Repeat([]byte("x"), 1024))
			}
		})

		serve(slog.LevelDebug, httptest.NewRequest(http.MethodGet, "/", nil), next)

		Expect(out.String()).To(ContainSubstring(`"response_size":102400`))
	})
})
