package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	"github.com/braidmgr/braidmgr/internal/httputil"
)

const (
	credentialKey = "credential"
	claimsKey     = "claims"
)

// CredentialVerifier checks a bearer credential and returns its claims.
type CredentialVerifier interface {
	Verify(credential string) (*accessDomain.Claims, error)
}

// CustomLoggerMiddleware logs every request after it is served.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", requestid.Get(c)),
		)
	}
}

// CredentialMiddleware extracts the bearer credential from the Authorization header.
// Verification happens when the request is executed.
func CredentialMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Set(credentialKey, credential)
		c.Next()
	}
}

// VerifiedCredentialMiddleware verifies the bearer credential up front and stores its
// claims. It serves routes that need the caller's identity but no tenant store.
func VerifiedCredentialMiddleware(verifier CredentialVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		claims, err := verifier.Verify(credential)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Set(credentialKey, credential)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the claims stored by VerifiedCredentialMiddleware, or nil.
func GetClaims(c *gin.Context) *accessDomain.Claims {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*accessDomain.Claims)
	return claims
}

// GetCredential returns the credential stored by CredentialMiddleware.
func GetCredential(c *gin.Context) string {
	return c.GetString(credentialKey)
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

type limiterStore struct {
	limiters sync.Map
	rps      float64
	burst    int
}

// RateLimitMiddleware limits requests per client IP with a token bucket. Stale
// limiters are dropped until ctx is cancelled.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &limiterStore{rps: rps, burst: burst}
	go store.cleanupStale(ctx, 5*time.Minute, time.Hour)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := store.get(clientIP)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Seconds()) + 1
			reservation.Cancel()

			logger.Debug("rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Too many requests, retry after the specified delay",
			})
			return
		}

		c.Next()
	}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	now := time.Now()
	entry := &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst), lastAccess: now}
	if val, loaded := s.limiters.LoadOrStore(ip, entry); loaded {
		entry = val.(*limiterEntry)
		entry.mu.Lock()
		entry.lastAccess = now
		entry.mu.Unlock()
	}
	return entry.limiter
}

func (s *limiterStore) cleanupStale(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictBefore(time.Now().Add(-maxAge))
		}
	}
}

func (s *limiterStore) evictBefore(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()
		if stale {
			s.limiters.Delete(key)
		}
		return true
	})
}
