package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/ksred/klear-profitshare/pkg/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles inbound API calls per client and path
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	authLimit rate.Limit
	apiLimit  rate.Limit
	idleAfter time.Duration
}

// NewRateLimiter builds a limiter and evicts idle visitors until ctx is done
func NewRateLimiter(ctx context.Context, authPerMinute, apiPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		visitors:  make(map[string]*visitor),
		authLimit: perMinute(authPerMinute),
		apiLimit:  perMinute(apiPerMinute),
		idleAfter: 3 * time.Minute,
	}
	go rl.cleanup(ctx)
	return rl
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(n) / 60.0)
}

func (rl *RateLimiter) getLimiter(path, clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := clientID + ":" + path
	v, exists := rl.visitors[key]
	if !exists {
		var limit rate.Limit
		switch {
		case strings.HasPrefix(path, "/api/v1/auth"):
			limit = rl.authLimit
		case strings.HasPrefix(path, "/api/v1"):
			limit = rl.apiLimit
		default:
			limit = rate.Inf
		}

		v = &visitor{
			limiter: rate.NewLimiter(limit, 1),
		}
		rl.visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.idleAfter {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("operatorID")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		if !rl.getLimiter(c.FullPath(), clientID).Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth accepts HS256 bearer tokens signed with secret and exposes the operator id
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearerToken := strings.Split(c.GetHeader("Authorization"), " ")
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "bearer") {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		token, err := jwt.Parse(bearerToken[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			response.Unauthorized(c, "Invalid token claims")
			c.Abort()
			return
		}

		for _, claim := range []string{"operator_id", "exp"} {
			if _, exists := claims[claim]; !exists {
				response.Unauthorized(c, fmt.Sprintf("Missing required claim: %s", claim))
				c.Abort()
				return
			}
		}

		c.Set("claims", claims)
		if operatorID, ok := claims["operator_id"].(string); ok {
			c.Set("operatorID", operatorID)
		}

		c.Next()
	}
}

// RequestLogger writes one structured line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logFor(c.Writer.Status())
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Str("operator_id", c.GetString("operatorID")).
			Msg("request")
	}
}
