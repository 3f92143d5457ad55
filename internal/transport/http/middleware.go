package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/auth"
)

const (
	// ContextKeySubject is the context key for storing the token subject.
	ContextKeySubject = "subject"

	// tokenQueryParam carries the token for browser WebSocket clients, which
	// cannot set headers.
	tokenQueryParam = "access_token"
)

// AuthMiddleware creates a middleware that validates JWT tokens. It lets
// every request through when no API secret is configured.
func AuthMiddleware(cfg *auth.JWTConfig, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled() {
			c.Next()
			return
		}

		claims, reason := authenticate(cfg, c.Request, logger)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: reason})
			return
		}

		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// RequireToken is AuthMiddleware for handlers mounted outside gin.
func RequireToken(cfg *auth.JWTConfig, logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if claims, reason := authenticate(cfg, r, logger); claims == nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: reason})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate returns the token claims, or nil and the reason for rejecting r.
func authenticate(cfg *auth.JWTConfig, r *http.Request, logger *zerolog.Logger) (*auth.Claims, string) {
	token := r.URL.Query().Get(tokenQueryParam)
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			return nil, "invalid authorization header format"
		}
		token = parts[1]
	}
	if token == "" {
		logger.Debug().Msg("missing authorization header")
		return nil, "missing authorization header"
	}

	claims, err := auth.ValidateToken(cfg, token)
	if err != nil {
		logger.Debug().Err(err).Msg("invalid token")
		return nil, "invalid token"
	}
	return claims, ""
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
