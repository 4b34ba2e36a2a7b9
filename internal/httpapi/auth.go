package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/riskbook-dev/riskbook/internal/id"
	"github.com/riskbook-dev/riskbook/internal/model"
)

const userIDKey = "user_id"

type authConfig struct {
	secret   []byte
	tokenTTL time.Duration
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (s *Server) register(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "email and password are required")
		return
	}
	if len(in.Password) < 8 {
		s.badRequest(c, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		s.fail(c, err)
		return
	}
	u := model.User{
		ID:           id.New(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(c.Request.Context(), u); err != nil {
		s.fail(c, err)
		return
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusCreated, tokenResponse{Token: token, Email: u.Email})
}

func (s *Server) login(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "email and password are required")
		return
	}

	u, err := s.store.UserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		// Do not reveal whether the email exists.
		s.unauthorized(c, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		s.unauthorized(c, "invalid credentials")
		return
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, tokenResponse{Token: token, Email: u.Email})
}

func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.auth.tokenTTL)),
	})
	return tok.SignedString(s.auth.secret)
}

// requireAuth validates the Bearer token and stashes the user id.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		s.unauthorized(c, "missing bearer token")
		return
	}

	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.auth.secret, nil
	})
	if err != nil || !tok.Valid {
		s.unauthorized(c, "invalid or expired token")
		return
	}
	claims := tok.Claims.(*jwt.RegisteredClaims)
	if claims.Subject == "" {
		s.unauthorized(c, "invalid token subject")
		return
	}

	c.Set(userIDKey, claims.Subject)
	c.Next()
}

func (s *Server) unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
		Success: false,
		Error:   &apiError{Code: "UNAUTHORIZED", Message: msg},
	})
}

func userID(c *gin.Context) string { return c.GetString(userIDKey) }
