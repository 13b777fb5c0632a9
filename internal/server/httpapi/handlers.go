package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	users UserService
	log   logging.Logger
	ping  func(ctx context.Context) error
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  bool      `json:"database"`
}

func (h *handlers) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, autherr.Wrap(autherr.InvalidInput, "decode signup request", err))
		return
	}

	cred, err := h.users.SignUp(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, userResponse{ID: cred.ID, Username: cred.UserName, CreatedAt: cred.CreatedAt})
}

// logIn verifies the password and answers with a bearer token. Sign-up does
// not log the user in; clients call this right after.
func (h *handlers) logIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, autherr.Wrap(autherr.InvalidInput, "decode login request", err))
		return
	}

	claims, err := h.users.LogIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	tok, err := h.users.IssueAccessToken(claims)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info(c.Request.Context(), "token issued", "user", claims.Subject)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tok.Token,
		TokenType:   tok.TokenType,
		ExpiresIn:   int64(tok.ExpiresIn / time.Second),
	})
}

func (h *handlers) homePage(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		writeError(c, h.log, autherr.New(autherr.TokenMissing, "no claims on request context"))
		return
	}
	c.String(http.StatusOK, "Welcome to HomePage, %s!", claims.Subject)
}

func (h *handlers) health(c *gin.Context) {
	resp := healthResponse{Status: "serving", Timestamp: time.Now().UTC(), Database: true}
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			h.log.Error(c.Request.Context(), "database healthcheck failed", "error", err)
			resp.Status, resp.Database = "not serving", false
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// writeError logs the full error and answers with its public form only.
func writeError(c *gin.Context, log logging.Logger, err error) {
	status, msg := autherr.Public(err)
	kind, _ := autherr.KindOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "kind", kind, "error", err)
	} else {
		log.Warn(c.Request.Context(), "request rejected", "path", c.Request.URL.Path, "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
