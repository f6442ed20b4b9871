package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ebike-booking/internal/models"
	"ebike-booking/internal/session"
	"ebike-booking/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	identityKey     = "identity"
	sessionTokenKey = "session_token"
)

// Authenticate accepts either an HS256 JWT carrying email/role claims or an
// opaque session token previously stored by the identity collaborator.
func Authenticate(secret string, sessions session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

		var (
			identity models.Identity
			err      error
		)
		if strings.Count(raw, ".") == 2 {
			identity, err = identityFromJWT(raw, secret)
		} else {
			identity, err = identityFromSession(c.Request.Context(), sessions, raw)
		}
		if err != nil || identity.Email == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		c.Set(identityKey, identity)
		if strings.Count(raw, ".") != 2 {
			c.Set(sessionTokenKey, raw)
		}
		c.Next()
	}
}

func identityFromJWT(raw, secret string) (models.Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return models.Identity{}, errors.New("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, errors.New("invalid claims")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		email, _ = claims["sub"].(string)
	}
	role, _ := claims["role"].(string)
	return models.Identity{Email: email, Role: role}, nil
}

func identityFromSession(ctx context.Context, sessions session.Store, token string) (models.Identity, error) {
	if sessions == nil || token == "" {
		return models.Identity{}, errors.New("sessions unavailable")
	}
	data, err := sessions.Get(ctx, session.Key{Kind: session.KindSession, Subject: token})
	if err != nil {
		return models.Identity{}, err
	}
	var identity models.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return models.Identity{}, err
	}
	return identity, nil
}

// IssueSessionToken stores identity under a fresh opaque token
func IssueSessionToken(ctx context.Context, sessions session.Store, identity models.Identity, ttl time.Duration) (string, error) {
	data, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := sessions.Put(ctx, session.Key{Kind: session.KindSession, Subject: token}, data, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// RequireAdmin rejects callers without the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIdentity(c).IsAdmin() {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// RateLimit allows perMinute requests per identity (or client IP) in a fixed
// one-minute window. A failing store lets requests through.
func RateLimit(sessions session.Store, perMinute int) gin.HandlerFunc {
	logger := util.GetLogger()
	return func(c *gin.Context) {
		if sessions == nil || perMinute <= 0 {
			c.Next()
			return
		}

		subject := currentIdentity(c).Email
		if subject == "" {
			subject = c.ClientIP()
		}
		n, err := sessions.Incr(c.Request.Context(), session.Key{Kind: session.KindRateLimit, Subject: subject}, time.Minute)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if n > int64(perMinute) {
			util.RateLimitedTotal.Inc()
			c.Header("Retry-After", "60")
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Identity{}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
