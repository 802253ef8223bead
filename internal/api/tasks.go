package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/models"
)

func (s *Server) handleListTasks(c *gin.Context) {
	var q models.TaskQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badInput(c, err)
		return
	}

	tasks, err := s.tracker.ListTasks(c.Request.Context(), principal(c), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, tasks)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	t, err := s.tracker.CreateTask(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, t)
}

func (s *Server) handleTaskStats(c *gin.Context) {
	st, err := s.tracker.TaskStats(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, st)
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.tracker.GetTask(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	t, err := s.tracker.UpdateTask(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, t)
}

func (s *Server) handleUpdateTaskStatus(c *gin.Context) {
	var req models.TaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	t, err := s.tracker.UpdateTaskStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.tracker.DeleteTask(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Task deleted successfully")
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badInput(c, err)
		return
	}

	t, err := s.tracker.AddComment(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, t)
}
