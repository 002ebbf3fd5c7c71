// Package auth guards the HTTP facade with an optional static bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// QueryParam carries the token for clients that cannot set headers, such as
// browser websockets.
const QueryParam = "token"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Middleware checks requests against a static token. An empty token
// disables authentication.
type Middleware struct {
	token   []byte
	enabled bool
}

func NewMiddleware(token string) *Middleware {
	return &Middleware{token: []byte(token), enabled: token != ""}
}

// Enabled reports whether requests are checked.
func (m *Middleware) Enabled() bool { return m.enabled }

// GinAuth returns a Gin middleware function for authentication
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}
		if err := m.authenticate(c.Request); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": err.Error(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// HTTPAuth returns a standard HTTP middleware function for authentication
func (m *Middleware) HTTPAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}
		if err := m.authenticate(r); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication_failed","message":"` + err.Error() + `"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate accepts "Authorization: Bearer <token>" or ?token=<token>.
func (m *Middleware) authenticate(r *http.Request) error {
	got := bearer(r.Header.Get("Authorization"))
	if got == "" {
		got = r.URL.Query().Get(QueryParam)
	}
	if got == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(got), m.token) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
