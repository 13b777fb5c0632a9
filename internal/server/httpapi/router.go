// Package httpapi exposes the user endpoints over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// UserService is the part of services.UserService the handlers use.
type UserService interface {
	SignUp(ctx context.Context, userName, password string) (*models.Credential, error)
	LogIn(ctx context.Context, userName, password string) (*auth.Claims, error)
	IssueAccessToken(claims *auth.Claims) (*services.AccessToken, error)
}

// Authenticator turns an Authorization header into claims. *auth.Guard
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*auth.Claims, error)
}

// Options configures NewRouter.
type Options struct {
	Users  UserService
	Guard  Authenticator
	Logger logging.Logger

	// Ping reports storage health for GET /health; nil means always healthy.
	Ping func(ctx context.Context) error

	AllowedOrigins []string
	Debug          bool
}

// NewRouter builds the gin engine with request logging and recovery, and
// wraps it in a CORS handler so preflight requests never reach gin.
func NewRouter(opts Options) http.Handler {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &handlers{users: opts.Users, log: opts.Logger.With("component", "httpapi"), ping: opts.Ping}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(h.log))

	engine.GET("/health", h.health)

	users := engine.Group("/users")
	users.POST("/signup", h.signUp)
	users.POST("/login", h.logIn)

	secured := users.Group("")
	secured.Use(requireAuth(opts.Guard, h.log))
	secured.GET("/homepage", h.homePage)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(engine)
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"size", c.Writer.Size(),
			"duration", time.Since(start),
		)
	}
}

// requireAuth runs the guard and puts the verified claims on the request
// context. Rejections are answered with 401 and never reach the handler.
func requireAuth(guard Authenticator, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := guard.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			writeError(c, log, err)
			return
		}
		c.Request = c.Request.WithContext(auth.ContextWithClaims(c.Request.Context(), claims))
		c.Next()
	}
}
