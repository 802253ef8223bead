package front

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/logging"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/tracker"
)

var (
	errInvalidForm      = errs.Invalid("Please check the form and try again")
	errInvalidFilters   = errs.Invalid("Invalid filters")
	errPasswordMismatch = errs.Invalid("Passwords do not match")
)

func (p *pages) page(c *gin.Context, title, active string) Page {
	return Page{
		Title:  title,
		Active: active,
		User:   userVM(caller(c)),
		Flash:  p.takeFlashes(c),
	}
}

func caller(c *gin.Context) models.Principal {
	p, _ := authmw.PrincipalFrom(c)
	return p
}

// renderError shows the error page for failures that have no sensible
// redirect target.
func (p *pages) renderError(c *gin.Context, err error) {
	status := errs.Status(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logging.FromContext(c, p.log).WithError(err).Error("page failed")
	}
	c.HTML(status, "error.html", ErrorVM{
		Page:    p.page(c, "Error", ""),
		Status:  status,
		Message: errs.Message(err),
	})
}

// back flashes err and redirects to target. Server errors are logged.
func (p *pages) back(c *gin.Context, target string, err error) {
	if errs.Status(err) >= http.StatusInternalServerError {
		_ = c.Error(err)
		logging.FromContext(c, p.log).WithError(err).Error("page action failed")
	}
	p.flash(c, flashError, errs.Message(err))
	c.Redirect(http.StatusSeeOther, target)
}

func (p *pages) done(c *gin.Context, target, msg string) {
	p.flash(c, flashSuccess, msg)
	c.Redirect(http.StatusSeeOther, target)
}

// safeNext only follows local redirects.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/dashboard"
	}
	return next
}

// day turns the zero time a blank date input binds to into nil.
func day(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}

func (p *pages) handleIndex(c *gin.Context) {
	if _, ok := authmw.PrincipalFrom(c); ok {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.HTML(http.StatusOK, "index.html", p.page(c, "Task Tracker", "home"))
}

func (p *pages) handleLoginPage(c *gin.Context) {
	if _, ok := authmw.PrincipalFrom(c); ok {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.HTML(http.StatusOK, "login.html", AuthVM{Page: p.page(c, "Login", "login"), Next: c.Query("next")})
}

func (p *pages) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	next := c.PostForm("next")
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", AuthVM{
			Page: p.page(c, "Login", "login"), Email: req.Email, Next: next,
			Error: "Please provide an email and password",
		})
		return
	}

	sess, err := p.tracker.Login(c.Request.Context(), req)
	if err != nil {
		if errs.Status(err) >= http.StatusInternalServerError {
			p.renderError(c, err)
			return
		}
		c.HTML(errs.Status(err), "login.html", AuthVM{
			Page: p.page(c, "Login", "login"), Email: req.Email, Next: next,
			Error: errs.Message(err),
		})
		return
	}

	p.startSession(c, sess)
	p.done(c, safeNext(next), "Welcome back, "+sess.User.Name)
}

func (p *pages) handleRegisterPage(c *gin.Context) {
	if _, ok := authmw.PrincipalFrom(c); ok {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.HTML(http.StatusOK, "register.html", AuthVM{Page: p.page(c, "Register", "register")})
}

func (p *pages) handleRegister(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "register.html", AuthVM{
			Page: p.page(c, "Register", "register"), Email: req.Email, Name: req.Name,
			Error: "Please fill in every field; the password needs at least 6 characters",
		})
		return
	}
	if c.PostForm("confirmPassword") != "" && c.PostForm("confirmPassword") != req.Password {
		c.HTML(http.StatusBadRequest, "register.html", AuthVM{
			Page: p.page(c, "Register", "register"), Email: req.Email, Name: req.Name,
			Error: "Passwords do not match",
		})
		return
	}

	sess, err := p.tracker.Register(c.Request.Context(), req)
	if err != nil {
		if errs.Status(err) >= http.StatusInternalServerError {
			p.renderError(c, err)
			return
		}
		c.HTML(errs.Status(err), "register.html", AuthVM{
			Page: p.page(c, "Register", "register"), Email: req.Email, Name: req.Name,
			Error: errs.Message(err),
		})
		return
	}

	p.startSession(c, sess)
	p.done(c, "/dashboard", "Your account has been created")
}

func (p *pages) startSession(c *gin.Context, sess *tracker.Session) {
	authmw.SetCookie(c, sess.Token, int(p.tracker.TokenTTL().Seconds()), p.config.CookieSecure, p.config.CookieDomain)
}

func (p *pages) handleLogout(c *gin.Context) {
	claims, _ := authmw.ClaimsFrom(c)
	if err := p.tracker.Logout(c.Request.Context(), claims); err != nil {
		logging.FromContext(c, p.log).WithError(err).Warn("logout could not revoke the token")
	}
	authmw.ClearCookie(c, p.config.CookieSecure, p.config.CookieDomain)
	p.done(c, loginPath, "You have been logged out")
}
