package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /login-jwt
func (h *Handler) LoginJWT(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", CodeInvalidRequest, err.Error())
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AdminPass)) == 1
	if !userOK || !passOK {
		return ErrorResponse(c, http.StatusUnauthorized, "Invalid username or password", CodeUnauthorized, "")
	}

	now := time.Now()
	expiresAt := now.Add(24 * time.Hour)
	claims := jwt.MapClaims{
		"sub": req.Username,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to sign token", CodeInternal, err.Error())
	}

	return SuccessResponse(c, http.StatusOK, "Login successful", map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

// GET /api/validate
func (h *Handler) ValidateToken(c echo.Context) error {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return ErrorResponse(c, http.StatusUnauthorized, "Invalid token", CodeUnauthorized, "")
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	return SuccessResponse(c, http.StatusOK, "Token is valid", map[string]interface{}{
		"subject":   claims["sub"],
		"expiresAt": claims["exp"],
	})
}
