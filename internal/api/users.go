package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/models"
)

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.tracker.ListUsers(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, users)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	u, err := s.tracker.CreateUser(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, u)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	u, err := s.tracker.UpdateUser(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	if err := s.tracker.DeleteUser(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "User deleted successfully")
}
