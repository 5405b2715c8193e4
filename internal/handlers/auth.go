package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/api/internal/middleware"
	"taskboard/api/internal/service"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// loginRequest accepts the identifier as username_or_email or, for older clients, username.
type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Username        string `json:"username"`
	Password        string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Status   int16  `json:"status"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	sendTokenPair(c, result)
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	identifier := req.UsernameOrEmail
	if identifier == "" {
		identifier = req.Username
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	sendTokenPair(c, result)
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	sendTokenPair(c, result)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	c.JSON(http.StatusOK, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Status:   int16(user.Status),
	})
}

func sendTokenPair(c *gin.Context, result service.AuthResult) {
	c.JSON(http.StatusOK, tokenPairResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(result.Tokens.ExpiresIn.Seconds()),
	})
}
