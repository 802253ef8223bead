package front

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/utils"
)

// blank drops a submitted but empty form value so the field is left alone.
func blank[T ~string](v *T) *T {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func managers(people []models.User) []models.User {
	return utils.Filter(people, func(u models.User) bool { return u.Role.CanManage() })
}

func (p *pages) handleDashboard(c *gin.Context) {
	d, err := p.tracker.Dashboard(c.Request.Context(), caller(c))
	if err != nil {
		p.renderError(c, err)
		return
	}
	respondInFormat(c, http.StatusOK, DashboardVM{Page: p.page(c, "Dashboard", "dashboard"), Dashboard: d}, "dashboard.html")
}

func (p *pages) handleCalendar(c *gin.Context) {
	events, err := p.tracker.Calendar(c.Request.Context(), caller(c))
	if err != nil {
		p.renderError(c, err)
		return
	}
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, events)
		return
	}
	c.HTML(http.StatusOK, "calendar.html", CalendarVM{Page: p.page(c, "Calendar", "calendar"), Events: events})
}

func (p *pages) handleProjects(c *gin.Context) {
	var q models.ProjectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		p.back(c, "/projects", errInvalidFilters)
		return
	}
	ctx := c.Request.Context()
	projects, err := p.tracker.ListProjects(ctx, caller(c), q)
	if err != nil {
		p.renderError(c, err)
		return
	}
	names, err := p.tracker.ManagerNames(ctx, projects)
	if err != nil {
		p.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "projects.html", ProjectsVM{
		Page:     p.page(c, "Projects", "projects"),
		Projects: projects,
		Names:    names,
		Filters:  q,
	})
}

func (p *pages) handleNewProject(c *gin.Context) {
	people, err := p.tracker.People(c.Request.Context(), caller(c))
	if err != nil {
		p.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "project_new.html", ProjectFormVM{
		Page:     p.page(c, "New project", "projects"),
		Managers: managers(people),
		People:   people,
	})
}

func (p *pages) handleCreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, "/projects/new", errInvalidForm)
		return
	}
	req.StartDate, req.EndDate = day(req.StartDate), day(req.EndDate)

	proj, err := p.tracker.CreateProject(c.Request.Context(), caller(c), req)
	if err != nil {
		p.back(c, "/projects/new", err)
		return
	}
	p.done(c, "/projects/"+proj.ID, "Project created")
}

func (p *pages) handleProject(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := p.tracker.ProjectPage(ctx, caller(c), c.Param("id"))
	if err != nil {
		p.renderError(c, err)
		return
	}

	vm := ProjectVM{Page: p.page(c, view.Project.Name, "projects"), ProjectView: view}
	if view.CanEdit {
		people, err := p.tracker.People(ctx, caller(c))
		if err != nil {
			p.renderError(c, err)
			return
		}
		vm.Candidates = utils.Filter(people, func(u models.User) bool {
			return !view.Project.IsParticipant(u.ID)
		})
		vm.Managers = managers(people)
	}
	c.HTML(http.StatusOK, "project.html", vm)
}

func (p *pages) handleUpdateProject(c *gin.Context) {
	id := c.Param("id")
	target := "/projects/" + id

	var req models.UpdateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, target, errInvalidForm)
		return
	}
	req.Name, req.Description = blank(req.Name), blank(req.Description)
	req.Manager, req.Status = blank(req.Manager), blank(req.Status)
	req.StartDate, req.EndDate = day(req.StartDate), day(req.EndDate)

	if _, err := p.tracker.UpdateProject(c.Request.Context(), caller(c), id, req); err != nil {
		p.back(c, target, err)
		return
	}
	p.done(c, target, "Project updated")
}

func (p *pages) handleDeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := p.tracker.DeleteProject(c.Request.Context(), caller(c), id); err != nil {
		p.back(c, "/projects/"+id, err)
		return
	}
	p.done(c, "/projects", "Project and its tasks deleted")
}

func (p *pages) handleAddMember(c *gin.Context) {
	id := c.Param("id")
	target := "/projects/" + id

	var req models.TeamMemberRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, target, errInvalidForm)
		return
	}
	if _, err := p.tracker.AddTeamMember(c.Request.Context(), caller(c), id, req.UserID); err != nil {
		p.back(c, target, err)
		return
	}
	p.done(c, target, "Team member added")
}

func (p *pages) handleRemoveMember(c *gin.Context) {
	id := c.Param("id")
	target := "/projects/" + id
	if _, err := p.tracker.RemoveTeamMember(c.Request.Context(), caller(c), id, c.Param("userId")); err != nil {
		p.back(c, target, err)
		return
	}
	p.done(c, target, "Team member removed")
}

func (p *pages) handleTasks(c *gin.Context) {
	var q models.TaskQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		p.back(c, "/tasks", errInvalidFilters)
		return
	}
	ctx := c.Request.Context()
	tasks, err := p.tracker.ListTasks(ctx, caller(c), q)
	if err != nil {
		p.renderError(c, err)
		return
	}
	names, projects, err := p.tracker.TaskNames(ctx, tasks)
	if err != nil {
		p.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "tasks.html", TasksVM{
		Page:     p.page(c, "Tasks", "tasks"),
		Tasks:    tasks,
		Names:    names,
		Projects: projects,
		Filters:  q,
	})
}

func (p *pages) handleNewTask(c *gin.Context) {
	who := caller(c)
	projects, err := p.tracker.ListProjects(c.Request.Context(), who, models.ProjectQuery{Sort: "name"})
	if err != nil {
		p.renderError(c, err)
		return
	}
	projects = utils.Filter(projects, func(proj models.Project) bool {
		return policy.CanCreateTask(who, &proj) == nil
	})
	c.HTML(http.StatusOK, "task_new.html", TaskFormVM{
		Page:      p.page(c, "New task", "tasks"),
		Projects:  projects,
		ProjectID: c.Query("project"),
	})
}

func (p *pages) handleCreateTask(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, "/tasks/new", errInvalidForm)
		return
	}
	req.DueDate = day(req.DueDate)

	t, err := p.tracker.CreateTask(c.Request.Context(), caller(c), req)
	if err != nil {
		p.back(c, "/tasks/new?project="+req.Project, err)
		return
	}
	p.done(c, "/tasks/"+t.ID, "Task created")
}

func (p *pages) handleTask(c *gin.Context) {
	view, err := p.tracker.TaskPage(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		p.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task.html", TaskVM{Page: p.page(c, view.Task.Title, "tasks"), TaskView: view})
}

func (p *pages) handleUpdateTask(c *gin.Context) {
	id := c.Param("id")
	target := "/tasks/" + id

	var req models.UpdateTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, target, errInvalidForm)
		return
	}
	req.Title, req.Description = blank(req.Title), blank(req.Description)
	req.Status, req.Priority = blank(req.Status), blank(req.Priority)
	req.DueDate = day(req.DueDate)

	if _, err := p.tracker.UpdateTask(c.Request.Context(), caller(c), id, req); err != nil {
		p.back(c, target, err)
		return
	}
	p.done(c, target, "Task updated")
}

func (p *pages) handleTaskStatus(c *gin.Context) {
	id := c.Param("id")
	target := c.DefaultPostForm("next", "/tasks/"+id)
	target = safeNext(target)

	var req models.TaskStatusRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, target, errInvalidForm)
		return
	}
	t, err := p.tracker.UpdateTaskStatus(c.Request.Context(), caller(c), id, req.Status)
	if err != nil {
		p.back(c, target, err)
		return
	}
	p.done(c, target, "Status set to "+t.Status.Label())
}

func (p *pages) handleComment(c *gin.Context) {
	id := c.Param("id")
	target := "/tasks/" + id

	var req models.CommentRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, target, errInvalidForm)
		return
	}
	if _, err := p.tracker.AddComment(c.Request.Context(), caller(c), id, req); err != nil {
		p.back(c, target, err)
		return
	}
	p.done(c, target+"#comments", "Comment added")
}

func (p *pages) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := p.tracker.DeleteTask(c.Request.Context(), caller(c), id); err != nil {
		p.back(c, "/tasks/"+id, err)
		return
	}
	p.done(c, "/tasks", "Task deleted")
}

func (p *pages) handleProfile(c *gin.Context) {
	ctx := c.Request.Context()
	who := caller(c)
	me, err := p.tracker.Me(ctx, who)
	if err != nil {
		p.renderError(c, err)
		return
	}
	st, err := p.tracker.TaskStats(ctx, who)
	if err != nil {
		p.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "profile.html", ProfileVM{Page: p.page(c, "Profile", "profile"), Profile: me, Stats: st})
}

func (p *pages) handleUpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, "/profile", errInvalidForm)
		return
	}
	req.Name, req.Email = blank(req.Name), blank(req.Email)
	req.ProfilePicture, req.Role = blank(req.ProfilePicture), blank(req.Role)

	if _, err := p.tracker.UpdateProfile(c.Request.Context(), caller(c), req); err != nil {
		p.back(c, "/profile", err)
		return
	}
	p.done(c, "/profile", "Profile updated")
}

func (p *pages) handleChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		p.back(c, "/profile", errInvalidForm)
		return
	}
	if c.PostForm("confirmPassword") != "" && c.PostForm("confirmPassword") != req.NewPassword {
		p.back(c, "/profile", errPasswordMismatch)
		return
	}
	if err := p.tracker.ChangePassword(c.Request.Context(), caller(c), req); err != nil {
		p.back(c, "/profile", err)
		return
	}
	p.done(c, "/profile", "Password changed")
}
