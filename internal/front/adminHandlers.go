package front

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/models"
)

const adminPath = "/admin"

func (p *pages) handleAdmin(c *gin.Context) {
	users, err := p.tracker.ListUsers(c.Request.Context(), caller(c))
	if err != nil {
		p.renderError(c, err)
		return
	}
	respondInFormat(c, http.StatusOK, AdminVM{Page: p.page(c, "Users", "admin"), Users: users}, "admin.html")
}

func (p *pages) handleAdminCreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, adminPath, errInvalidForm)
		return
	}
	u, err := p.tracker.CreateUser(c.Request.Context(), caller(c), req)
	if err != nil {
		p.back(c, adminPath, err)
		return
	}
	p.done(c, adminPath, "Created "+u.Email)
}

func (p *pages) handleAdminUpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, adminPath, errInvalidForm)
		return
	}
	req.Name, req.Email, req.Role = blank(req.Name), blank(req.Email), blank(req.Role)

	u, err := p.tracker.UpdateUser(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		p.back(c, adminPath, err)
		return
	}
	p.done(c, adminPath, "Updated "+u.Email)
}

func (p *pages) handleAdminDeleteUser(c *gin.Context) {
	if err := p.tracker.DeleteUser(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		p.back(c, adminPath, err)
		return
	}
	p.done(c, adminPath, "User deleted")
}
