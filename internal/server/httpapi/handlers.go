package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"github.com/dmitrijs2005/jobtrack/internal/server/models"
	"github.com/dmitrijs2005/jobtrack/internal/server/oauth"
	"github.com/dmitrijs2005/jobtrack/internal/server/services"
	"github.com/labstack/echo/v4"
)

const (
	stateCookie      = "oauth_state"
	stateCookieTTL   = 10 * time.Minute
	oauthFailMessage = "Google authentication failed"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type profileResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

type callbackResponse struct {
	Token string        `json:"token"`
	User  oauth.Profile `json:"user"`
}

type callbackError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	u, err := s.auth.Signup(c.Request().Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.writeError(c, err, nil)
	}
	return c.JSON(http.StatusCreated, u.Public())
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	token, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, loginResponse{AccessToken: token})
}

func (s *Server) forgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	res, err := s.auth.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return s.writeError(c, err, map[error]string{
			common.ErrUserNotFound: "User not found with that email",
		})
	}

	if res.Delivered {
		return c.JSON(http.StatusOK, messageResponse{Message: "Password reset link sent"})
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: "Reset token generated successfully",
		Token:   res.Token,
	})
}

func (s *Server) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	if err := s.auth.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return s.writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password has been reset successfully"})
}

func (s *Server) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	claims := GetClaims(c)
	err := s.auth.ChangePassword(c.Request().Context(), claims.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return s.writeError(c, err, map[error]string{
			common.ErrInvalidCredentials: "Current password is incorrect",
		})
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (s *Server) profile(c echo.Context) error {
	claims := GetClaims(c)
	u, err := s.auth.Profile(c.Request().Context(), claims.UserID())
	if err != nil {
		return s.writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, profileResponse{
		Message: "you are authenticated",
		User:    u.Public(),
	})
}

func (s *Server) googleRedirect(c echo.Context) error {
	state, err := common.MakeRandHexString(16)
	if err != nil {
		return s.writeError(c, err, nil)
	}

	target, err := s.auth.OAuthLoginURL(state)
	if err != nil {
		return s.oauthError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, target)
}

// googleCallback completes sign-in. The state parameter must match the
// cookie set by googleRedirect.
func (s *Server) googleCallback(c echo.Context) error {
	cookie, err := c.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		return s.oauthError(c, errors.New("missing oauth state"))
	}
	c.SetCookie(&http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})
	if cookie.Value != c.QueryParam("state") {
		return s.oauthError(c, errors.New("state mismatch"))
	}

	res, err := s.auth.OAuthLogin(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		return s.oauthError(c, err)
	}
	return c.JSON(http.StatusOK, callbackResponse{Token: res.Token, User: res.Profile})
}

func (s *Server) oauthError(c echo.Context, err error) error {
	s.logger.Warn(c.Request().Context(), "oauth sign-in failed", "error", err)

	details := err.Error()
	var of *services.OAuthFailedError
	if errors.As(err, &of) {
		details = of.Details()
	}
	return c.JSON(http.StatusInternalServerError, callbackError{Error: oauthFailMessage, Details: details})
}
