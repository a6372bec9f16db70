// Package api serves the monitoring and control REST API and the live
// session event stream.
package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/config"
)

// AuthMiddleware checks the API key and the IP whitelist.
type AuthMiddleware struct {
	cfg *config.Config
}

// NewAuthMiddleware builds the auth checks from cfg.
func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

// RequireAuth returns a Gin middleware that verifies the API key. The key is
// read from a bearer Authorization header, or from the api_key query
// parameter for websocket clients that cannot set headers.
// When auth_disabled is true in config, every request is accepted.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		appData := am.cfg.GetApplicationData()
		if appData.Security.AuthDisabled {
			c.Set("client", "local")
			c.Next()
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("api_key")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		expected := appData.API.APIKey
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("rejected API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set("client", c.ClientIP())
		c.Next()
	}
}

// IPWhitelist rejects clients outside security.ip_whitelist. Entries are
// single addresses or CIDR ranges; an empty list allows everyone.
func (am *AuthMiddleware) IPWhitelist() gin.HandlerFunc {
	allowed := parseWhitelist(am.cfg.GetApplicationData().Security.IPWhitelist)

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		ip := net.ParseIP(c.ClientIP())
		for _, n := range allowed {
			if ip != nil && n.Contains(ip) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "client address not allowed"})
	}
}

func parseWhitelist(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil {
				bits := 8 * len(ip.To16())
				if ip.To4() != nil {
					ip, bits = ip.To4(), 32
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
		} else {
			log.Warn().Str("entry", e).Msg("ignoring invalid ip_whitelist entry")
		}
	}
	return nets
}

// RateLimiter is a per-client token bucket: rate tokens per second, up to
// twice that in reserve.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// maxIdleBuckets bounds the client map; idle full buckets are dropped past it.
const maxIdleBuckets = 1024

// NewRateLimiter returns a limiter allowing rps requests per second per
// client. rps <= 0 disables limiting.
func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(rps),
		burst:   float64(2 * rps),
		now:     time.Now,
	}
}

// Middleware answers 429 once a client's bucket is empty.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate > 0 && !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from the client's bucket.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[clientIP]
	if !ok {
		if len(rl.buckets) >= maxIdleBuckets {
			rl.prune(now)
		}
		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[clientIP] = b
	}

	b.tokens = min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets that would have refilled completely.
func (rl *RateLimiter) prune(now time.Time) {
	full := time.Duration(rl.burst/rl.rate*float64(time.Second)) + time.Second
	for ip, b := range rl.buckets {
		if now.Sub(b.seen) > full {
			delete(rl.buckets, ip)
		}
	}
}

// SecurityHeaders sets response hardening headers; API responses may not be framed.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Server", "growbot")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("X-Frame-Options", "DENY")
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		c.Next()
	}
}

// RequestLogger logs every request. Failed requests log above debug level.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		switch {
		case status >= 500:
			ev = log.Warn()
		case status >= 400:
			ev = log.Info()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("api request")
	}
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
