package secured

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/auth"
	"github.com/thiagocrux/simcasi/internal/transport"
)

// CookieCredentials reads the caller's tokens from the request and writes
// rotated ones back as cookies on the response.
type CookieCredentials struct {
	w       http.ResponseWriter
	cookies *transport.CookieWriter
	access  string
	refresh string
}

func NewCookieCredentials(w http.ResponseWriter, r *http.Request, cookies *transport.CookieWriter) *CookieCredentials {
	return &CookieCredentials{
		w:       w,
		cookies: cookies,
		access:  transport.ExtractAccessToken(r),
		refresh: transport.ExtractRefreshToken(r),
	}
}

func (c *CookieCredentials) AccessToken() string  { return c.access }
func (c *CookieCredentials) RefreshToken() string { return c.refresh }

func (c *CookieCredentials) Save(pair auth.TokenPair) {
	c.access = pair.AccessToken
	c.refresh = pair.RefreshToken
	c.cookies.Set(c.w, transport.TokenCookies{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresIn:  pair.AccessExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
		RememberMe:       pair.RememberMe,
	})
}

func (c *CookieCredentials) Clear() {
	c.access = ""
	c.refresh = ""
	c.cookies.Clear(c.w)
}

// HandlerFunc is a protected HTTP operation. It returns the status and body to write.
type HandlerFunc func(ctx context.Context, r *http.Request) (int, interface{}, error)

type HTTPAdapter struct {
	*transport.BaseHandler
	wrapper *Wrapper
	cookies *transport.CookieWriter
	timeout time.Duration
}

func NewHTTPAdapter(wrapper *Wrapper, cookies *transport.CookieWriter, timeout time.Duration, lg *slog.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		BaseHandler: transport.NewBaseHandler(lg),
		wrapper:     wrapper,
		cookies:     cookies,
		timeout:     timeout,
	}
}

type response struct {
	status int
	body   interface{}
}

// Handle exposes fn as a protected route requiring any one of the codes.
func (a *HTTPAdapter) Handle(required []string, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// fn may run twice, so each run gets a fresh copy of the body
		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, transport.MaxRequestBodyBytes))
			if err != nil {
				a.WriteAppError(w, r, internal.NewValidationError("request body too large or unreadable", internal.ErrCodeValidationFailed))
				return
			}
		}

		client := internal.ClientInfoFromRequest(r)
		ctx, cancel := internal.Detached(r.Context(), a.timeout)
		defer cancel()
		ctx = internal.ContextWithClient(ctx, client)

		creds := NewCookieCredentials(w, r, a.cookies)
		res, err := Run(ctx, a.wrapper, creds, client, required, func(ctx context.Context) (response, error) {
			req := r.WithContext(ctx)
			req.Body = io.NopCloser(bytes.NewReader(body))
			status, payload, err := fn(ctx, req)
			return response{status: status, body: payload}, err
		})
		if err != nil {
			a.WriteAppError(w, r.WithContext(ctx), err)
			return
		}

		if res.status == 0 {
			res.status = http.StatusOK
		}
		if res.status == http.StatusNoContent {
			w.WriteHeader(res.status)
			return
		}
		a.WriteJSON(w, res.status, res.body)
	}
}
