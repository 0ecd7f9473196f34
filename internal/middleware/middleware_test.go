package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/escrow-backend/internal/reqctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{}

func (stubVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: "u1", Claims: map[string]interface{}{"email": "u1@example.com"}}, nil
}

func run(t *testing.T, m *AuthMiddleware, header, value string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := m.RequireAuth(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})(c)
	require.NoError(t, err)
	return rec, c
}

func TestRequireAuthVerifiesBearerToken(t *testing.T) {
	m := &AuthMiddleware{verifier: stubVerifier{}}

	rec, _ := run(t, m, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = run(t, m, "Authorization", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, c := run(t, m, "Authorization", "Bearer good")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", c.Get("uid"))
	assert.Equal(t, "u1@example.com", c.Get("email"))

	rec, _ = run(t, m, HeaderUserID, "spoofed")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDevAuthTrustsHeader(t *testing.T) {
	m := NewDevAuthMiddleware()

	rec, _ := run(t, m, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, c := run(t, m, HeaderUserID, "seller-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "seller-1", c.Get("uid"))
}

func TestNewAuthMiddlewareRequiresProject(t *testing.T) {
	_, err := NewAuthMiddleware(context.Background(), "", "")
	require.Error(t, err)
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "rid-42")

	var got string
	err := RequestContext(func(c echo.Context) error {
		got = reqctx.RID(c.Request().Context())
		return nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, "rid-42", got)
}
