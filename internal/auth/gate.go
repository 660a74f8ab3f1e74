// Package auth holds the optional password gate and the per-IP rate limiter.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	AuthCookie = "vs_auth"
	UserCookie = "vs_user"

	salt             = "video-summarize-auth"
	maxLoginAttempts = 5
	cookieMaxAge     = 30 * 24 * time.Hour
)

// Token is the cookie value that proves knowledge of password
func Token(password string) string {
	sum := sha256.Sum256([]byte(password + ":" + salt))
	return hex.EncodeToString(sum[:])
}

// Gate guards every route behind a shared password. IPs that fail to log in
// maxLoginAttempts times are banned for the life of the process.
type Gate struct {
	password string
	token    string

	mu       sync.Mutex
	failures map[string]int
	banned   map[string]struct{}
}

// NewGate creates a gate; an empty password disables it
func NewGate(password string) *Gate {
	return &Gate{
		password: password,
		token:    Token(password),
		failures: make(map[string]int),
		banned:   make(map[string]struct{}),
	}
}

// Enabled reports whether a password is configured
func (g *Gate) Enabled() bool { return g.password != "" }

// IsBanned reports whether ip has been banned
func (g *Gate) IsBanned(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.banned[ip]
	return ok
}

// recordFailure counts a failed login and returns the attempts left
func (g *Gate) recordFailure(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[ip]++
	n := g.failures[ip]
	if n >= maxLoginAttempts {
		g.banned[ip] = struct{}{}
		slog.Warn("IP permanently banned", slog.String("ip", ip), slog.Int("attempts", n))
	}
	return max(maxLoginAttempts-n, 0)
}

func exempt(path string) bool {
	return path == "/login" || path == "/health"
}

func banned(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "Too many failed login attempts",
		"code":  "ERR_BANNED",
	})
}

// Middleware rejects banned IPs and redirects requests without a valid
// auth cookie to /login
func (g *Gate) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !g.Enabled() || exempt(c.Path()) {
			return c.Next()
		}
		if g.IsBanned(c.IP()) {
			return banned(c)
		}
		if subtle.ConstantTimeCompare([]byte(c.Cookies(AuthCookie)), []byte(g.token)) != 1 {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// LoginPage describes the login form
func (g *Gate) LoginPage(c *fiber.Ctx) error {
	resp := fiber.Map{
		"fields": []string{"username", "password"},
	}
	if c.Query("error") != "" {
		resp["error"] = "Invalid password"
	}
	return c.JSON(resp)
}

// Login checks the submitted password and sets the auth cookies
func (g *Gate) Login(c *fiber.Ctx) error {
	ip := c.IP()
	if g.IsBanned(ip) {
		return banned(c)
	}

	password := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		remaining := g.recordFailure(ip)
		slog.Warn("failed login", slog.String("ip", ip), slog.Int("attempts_left", remaining))
		return c.Redirect("/login?error=1", fiber.StatusSeeOther)
	}

	expires := time.Now().Add(cookieMaxAge)
	c.Cookie(&fiber.Cookie{
		Name:     AuthCookie,
		Value:    g.token,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  expires,
	})
	c.Cookie(&fiber.Cookie{
		Name:     UserCookie,
		Value:    strings.TrimSpace(c.FormValue("username")),
		SameSite: fiber.CookieSameSiteStrictMode,
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  expires,
	})
	return c.Redirect("/", fiber.StatusSeeOther)
}
