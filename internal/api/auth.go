package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/tracker"
)

func (s *Server) startSession(c *gin.Context, status int, sess *tracker.Session) {
	authmw.SetCookie(c, sess.Token, int(s.tracker.TokenTTL().Seconds()), s.config.CookieSecure, s.config.CookieDomain)
	respond(c, status, sess)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	sess, err := s.tracker.Register(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.startSession(c, http.StatusCreated, sess)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	sess, err := s.tracker.Login(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.startSession(c, http.StatusOK, sess)
}

func (s *Server) handleLogout(c *gin.Context) {
	claims, _ := authmw.ClaimsFrom(c)
	if err := s.tracker.Logout(c.Request.Context(), claims); err != nil {
		s.fail(c, err)
		return
	}
	authmw.ClearCookie(c, s.config.CookieSecure, s.config.CookieDomain)
	respondMessage(c, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.tracker.Me(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, u)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	u, err := s.tracker.UpdateProfile(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, u)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	if err := s.tracker.ChangePassword(c.Request.Context(), principal(c), req); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Password updated successfully")
}
