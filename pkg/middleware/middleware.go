package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/pkg/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex

	// Configure limits per endpoint type
	authLimit = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	bidLimit  = rate.Limit(60.0 / 60.0)   // 60 requests per minute
	readLimit = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
)

// Cleanup old visitors periodically
func init() {
	go cleanupVisitors()
}

func getLimiter(method, path, clientID string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key := clientID + ":" + method + ":" + path
	v, exists := visitors[key]

	if !exists {
		var limit rate.Limit
		switch {
		case strings.HasPrefix(path, "/api/v1/auth"):
			limit = authLimit
		case method == "POST" && strings.HasSuffix(path, "/bids"):
			limit = bidLimit
		case method == "GET":
			limit = readLimit
		default:
			limit = rate.Inf
		}

		v = &visitor{
			limiter:  rate.NewLimiter(limit, 5), // small burst for UI retries
			lastSeen: time.Now(),
		}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}

// RateLimit throttles requests per client and endpoint class. Bid
// submissions get a tighter budget than reads so one client cannot
// monopolize an auction's critical section.
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		limiter := getLimiter(c.Request.Method, c.FullPath(), clientID)
		if !limiter.Allow() {
			response.Fail(c, 429, "RATE_LIMITED", "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth validates the bearer token and places the authenticated
// identity in the request context for downstream handlers.
func JWTAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := bearerIdentity(c, authService)
		if !ok {
			return
		}

		c.Set("identity", identity)
		c.Set("clientID", identity.UserID)
		c.Next()
	}
}

// AdminRequired gates admin-only routes. It must run after JWTAuth.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}
		if !identity.Admin {
			response.Forbidden(c, "Administrator access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerIdentity(c *gin.Context, authService *auth.Service) (auth.Identity, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// Websocket clients cannot set headers from the browser API,
		// so the token may arrive as a query parameter instead.
		authHeader = "Bearer " + c.Query("token")
	}

	bearerToken := strings.Split(authHeader, " ")
	if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" || bearerToken[1] == "" {
		response.Unauthorized(c, "Invalid authorization header")
		c.Abort()
		return auth.Identity{}, false
	}

	identity, err := authService.ValidateToken(bearerToken[1])
	if err != nil {
		response.Unauthorized(c, "Invalid token")
		c.Abort()
		return auth.Identity{}, false
	}

	return *identity, true
}
