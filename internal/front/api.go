// Package front serves the server rendered pages.
package front

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/config"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/tracker"
	"kyri56xcaesar/tasktracker/internal/utils"
)

const (
	staticPrefix = "/static"
	sessionName  = "tasktracker_session"
	loginPath    = "/login"
)

//go:embed web/templates/*.html
var templatesFS embed.FS

//go:embed web/static
var staticFS embed.FS

type Deps struct {
	Tracker *tracker.Service
	Gate    *authmw.Gate
	Config  config.Config
	Log     *logrus.Logger
}

type pages struct {
	tracker *tracker.Service
	gate    *authmw.Gate
	config  config.Config
	log     *logrus.Logger
}

// Mount installs the template engine, the static assets, the flash session
// and every page route on engine.
func Mount(engine *gin.Engine, d Deps) error {
	p := &pages{tracker: d.Tracker, gate: d.Gate, config: d.Config, log: d.Log}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}

	tmpl, err := p.templates()
	if err != nil {
		return err
	}
	engine.SetHTMLTemplate(tmpl)

	if d.Config.StaticsPath != "" {
		engine.Static(staticPrefix, d.Config.StaticsPath)
	} else {
		sub, err := fs.Sub(staticFS, "web/static")
		if err != nil {
			return err
		}
		engine.StaticFS(staticPrefix, http.FS(sub))
	}

	secret := d.Config.SessionSecret
	if secret == "" {
		if secret, err = utils.GenerateRandomString(32); err != nil {
			return fmt.Errorf("session secret: %w", err)
		}
	}
	sessionStore := cookie.NewStore([]byte(secret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		Domain:   d.Config.CookieDomain,
		MaxAge:   3600,
		Secure:   d.Config.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	p.setRoutes(engine, sessions.Sessions(sessionName, sessionStore))
	return nil
}

func (p *pages) templates() (*template.Template, error) {
	t := template.New("").Funcs(funcMap())
	if p.config.TemplatesPath != "" {
		return t.ParseGlob(p.config.TemplatesPath + "/*.html")
	}
	return t.ParseFS(templatesFS, "web/templates/*.html")
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b any) float64 {
			return utils.ToFloat64(a) + utils.ToFloat64(b)
		},
		"sub": func(a, b any) float64 {
			return utils.ToFloat64(a) - utils.ToFloat64(b)
		},
		"mul": func(a, b any) float64 {
			return utils.ToFloat64(a) * utils.ToFloat64(b)
		},
		"div": func(a, b any) float64 {
			if utils.ToFloat64(b) == 0 {
				return 0
			}

			return utils.ToFloat64(a) / utils.ToFloat64(b)
		},
		"lt": func(a, b any) bool {
			return utils.ToFloat64(a) < utils.ToFloat64(b)
		},
		"gr": func(a, b any) bool {
			return utils.ToFloat64(a) > utils.ToFloat64(b)
		},
		"toJSON": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return template.JS(b)
		},
		"lower":   strings.ToLower,
		"ago":     ago,
		"date":    date,
		"overdue": overdue,

		"statuses":           models.TaskStatuses,
		"priorities":         models.Priorities,
		"projectStatuses":    models.ProjectStatuses,
		"roles":              models.Roles,
		"profilePicturePath": profilePicturePath,
	}
}

func overdue(v any) bool {
	switch t := v.(type) {
	case models.Task:
		return t.Overdue(time.Now())
	case *models.Task:
		return t != nil && t.Overdue(time.Now())
	}
	return false
}

// date formats an optional time as yyyy-mm-dd, or "" when unset.
func date(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return ""
}

func ago(v any) string {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return ""
		}
		t = *x
	default:
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(math.Floor(d.Hours()/24)))
	}
	return t.Format("Jan 2, 2006")
}

func profilePicturePath(name string) string {
	if name == "" || name == models.DefaultProfilePicture {
		return staticPrefix + "/img/default-avatar.svg"
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name
	}
	return staticPrefix + "/img/" + name
}

func (p *pages) setRoutes(engine *gin.Engine, session gin.HandlerFunc) {
	public := engine.Group("/", session, p.gate.Optional())
	{
		public.GET("/", p.handleIndex)
		public.GET("/login", p.handleLoginPage)
		public.POST("/login", p.handleLogin)
		public.GET("/register", p.handleRegisterPage)
		public.POST("/register", p.handleRegister)
		public.GET("/logout", p.handleLogout)
		public.POST("/logout", p.handleLogout)
	}

	authed := engine.Group("/", session, p.gate.RequirePage(loginPath))
	{
		authed.GET("/dashboard", p.handleDashboard)

		authed.GET("/projects", p.handleProjects)
		authed.GET("/projects/new", p.handleNewProject)
		authed.POST("/projects", p.handleCreateProject)
		authed.GET("/projects/:id", p.handleProject)
		authed.POST("/projects/:id", p.handleUpdateProject)
		authed.POST("/projects/:id/delete", p.handleDeleteProject)
		authed.POST("/projects/:id/team", p.handleAddMember)
		authed.POST("/projects/:id/team/:userId/remove", p.handleRemoveMember)

		authed.GET("/tasks", p.handleTasks)
		authed.GET("/tasks/new", p.handleNewTask)
		authed.POST("/tasks", p.handleCreateTask)
		authed.GET("/tasks/:id", p.handleTask)
		authed.POST("/tasks/:id", p.handleUpdateTask)
		authed.POST("/tasks/:id/status", p.handleTaskStatus)
		authed.POST("/tasks/:id/comments", p.handleComment)
		authed.POST("/tasks/:id/delete", p.handleDeleteTask)

		authed.GET("/calendar", p.handleCalendar)
		authed.GET("/profile", p.handleProfile)
		authed.POST("/profile", p.handleUpdateProfile)
		authed.POST("/profile/password", p.handleChangePassword)

		authed.GET("/admin", p.handleAdmin)
		authed.POST("/admin/users", p.handleAdminCreateUser)
		authed.POST("/admin/users/:id", p.handleAdminUpdateUser)
		authed.POST("/admin/users/:id/delete", p.handleAdminDeleteUser)
	}

	engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
			return
		}
		c.HTML(http.StatusNotFound, "error.html", ErrorVM{
			Page:    Page{Title: "Not found"},
			Status:  http.StatusNotFound,
			Message: "The page you are looking for does not exist.",
		})
	})
}

// respondInFormat renders templateName, or the raw data when the caller
// asks for ?format=json or ?format=xml.
func respondInFormat(c *gin.Context, status int, data any, templateName string) {
	format := c.DefaultQuery("format", "html")

	switch strings.ToLower(format) {
	case "json":
		c.JSON(status, data)

	case "xml":
		c.XML(status, data)

	case "html":
		if templateName == "" {
			c.JSON(http.StatusNotAcceptable, gin.H{"error": "HTML format not supported for this endpoint"})
			return
		}
		c.HTML(status, templateName, data)

	default:
		c.JSON(status, data)
	}
}
