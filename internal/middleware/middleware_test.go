package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhin/linkcut/internal/auth"
	"github.com/avolkhin/linkcut/logging"
)

func TestWithSessionValidCookie(t *testing.T) {
	am := auth.NewManager("test-secret")
	token, err := am.BuildJWTString("user-42")
	require.NoError(t, err)

	var seen string
	h := Conveyor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}), logging.GetSugaredLogger(), WithSession(am))

	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-42", seen)
}

func TestWithSessionAnonymous(t *testing.T) {
	am := auth.NewManager("test-secret")

	var seen string
	h := Conveyor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}), logging.GetSugaredLogger(), WithSession(am))

	// No cookie at all.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/links", nil))
	assert.Empty(t, seen)

	// A forged cookie is treated the same as no cookie.
	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, seen)
}
