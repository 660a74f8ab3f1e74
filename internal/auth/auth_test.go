package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatedApp(password string) (*fiber.App, *Gate) {
	gate := NewGate(password)
	app := fiber.New()
	app.Use(gate.Middleware())
	app.Get("/login", gate.LoginPage)
	app.Post("/login", gate.Login)
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("home") })
	return app, gate
}

func loginRequest(username, password string) *http.Request {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestTokenIsStable(t *testing.T) {
	assert.Equal(t, Token("secret"), Token("secret"))
	assert.NotEqual(t, Token("secret"), Token("other"))
	assert.Len(t, Token("secret"), 64)
}

func TestGateDisabled(t *testing.T) {
	app, gate := newGatedApp("")
	assert.False(t, gate.Enabled())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateRedirectsWithoutCookie(t *testing.T) {
	app, _ := newGatedApp("secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateAcceptsValidCookie(t *testing.T) {
	app, _ := newGatedApp("secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: Token("secret")})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: Token("wrong")})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLoginSetsCookies(t *testing.T) {
	app, _ := newGatedApp("secret")

	resp, err := app.Test(loginRequest("  alice ", "secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	cookies := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, AuthCookie)
	require.Contains(t, cookies, UserCookie)
	assert.Equal(t, Token("secret"), cookies[AuthCookie].Value)
	assert.True(t, cookies[AuthCookie].HttpOnly)
	assert.Equal(t, "alice", cookies[UserCookie].Value)
}

func TestLoginBanAfterFailures(t *testing.T) {
	app, gate := newGatedApp("secret")

	for i := 0; i < maxLoginAttempts; i++ {
		resp, err := app.Test(loginRequest("bob", "nope"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login?error=1", resp.Header.Get("Location"))
	}

	// even the right password is refused once banned
	resp, err := app.Test(loginRequest("bob", "secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: Token("secret")})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.True(t, gate.IsBanned("0.0.0.0"))
}

func TestLoginPageReportsError(t *testing.T) {
	app, _ := newGatedApp("secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login?error=1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.1.1.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "limits are per IP")
}

func TestRateLimiterMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/api/jobs", NewRateLimiter(1).Middleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
