package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/logging"
	"kyri56xcaesar/tasktracker/internal/models"
)

// envelope is the shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondList[T any](c *gin.Context, items []T) {
	n := len(items)
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: items, Count: &n})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: true, Message: msg})
}

// fail writes err with its mapped status. Server errors are logged in full;
// the caller only sees the detail outside production.
func (s *Server) fail(c *gin.Context, err error) {
	status := errs.Status(err)
	body := envelope{Success: false, Message: errs.Message(err)}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logging.FromContext(c, s.log).WithError(err).Error("request failed")
		if !s.config.IsProduction() {
			body.Error = err.Error()
		}
	}
	c.JSON(status, body)
}

func (s *Server) badInput(c *gin.Context, err error) {
	body := envelope{Success: false, Message: "Invalid input"}
	if !s.config.IsProduction() {
		body.Error = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// principal is set by RequireAuth on every route that calls it.
func principal(c *gin.Context) models.Principal {
	p, _ := authmw.PrincipalFrom(c)
	return p
}
