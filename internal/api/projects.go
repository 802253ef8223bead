package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/models"
)

func (s *Server) handleListProjects(c *gin.Context) {
	var q models.ProjectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badInput(c, err)
		return
	}

	projects, err := s.tracker.ListProjects(c.Request.Context(), principal(c), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, projects)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	proj, err := s.tracker.CreateProject(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, proj)
}

func (s *Server) handleGetProject(c *gin.Context) {
	proj, err := s.tracker.GetProject(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, proj)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	proj, err := s.tracker.UpdateProject(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, proj)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.tracker.DeleteProject(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Project and its tasks deleted successfully")
}

func (s *Server) handleAddTeamMember(c *gin.Context) {
	var req models.TeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	proj, err := s.tracker.AddTeamMember(c.Request.Context(), principal(c), c.Param("id"), req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, proj)
}

func (s *Server) handleRemoveTeamMember(c *gin.Context) {
	proj, err := s.tracker.RemoveTeamMember(c.Request.Context(), principal(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, proj)
}

func (s *Server) handleProjectStats(c *gin.Context) {
	st, err := s.tracker.ProjectStats(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, st)
}
