package tracker

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/stats"
	"kyri56xcaesar/tasktracker/internal/store"
)

var projectOrders = map[string]store.ProjectOrder{
	"":          store.OrderNewest,
	"createdAt": store.OrderNewest,
	"name":      store.OrderName,
	"status":    store.OrderStatus,
	"endDate":   store.OrderEndDate,
}

// ListProjects returns the projects visible to the caller, each with its
// progress filled in. Search and ordering run in the store ahead of the limit.
func (s *Service) ListProjects(ctx context.Context, p models.Principal, q models.ProjectQuery) ([]models.Project, error) {
	order, ok := projectOrders[q.Sort]
	if !ok {
		return nil, errs.Invalidf("Invalid sort %q", q.Sort)
	}
	f := store.ProjectFilter{
		Scope:  policy.ProjectsVisibleTo(p),
		Search: strings.TrimSpace(q.Search),
		Order:  order,
		Limit:  q.Limit,
	}
	if q.Status != "" {
		st, err := models.ParseProjectStatus(q.Status)
		if err != nil {
			return nil, errs.Invalid(err.Error())
		}
		f.Status = st
	}

	projects, err := s.store.ListProjects(ctx, f)
	if err != nil {
		return nil, s.fail("list projects", err, nil)
	}
	for i := range projects {
		if err := s.fillProgress(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *Service) projectTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		Scope:     policy.TaskScope{All: true},
		ProjectID: projectID,
		Unbounded: true,
	})
	if err != nil {
		return nil, s.fail("list tasks", err, nil)
	}
	return tasks, nil
}

func (s *Service) fillProgress(ctx context.Context, proj *models.Project) error {
	tasks, err := s.projectTasks(ctx, proj.ID)
	if err != nil {
		return err
	}
	proj.Progress = stats.Progress(tasks)
	return nil
}

func (s *Service) GetProject(ctx context.Context, p models.Principal, id string) (*models.Project, error) {
	proj, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("view project", policy.CanViewProject(p, proj)); err != nil {
		return nil, err
	}
	if err := s.fillProgress(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}

func (s *Service) CreateProject(ctx context.Context, p models.Principal, req models.CreateProjectRequest) (*models.Project, error) {
	managerID := strings.TrimSpace(req.Manager)
	if managerID == "" {
		managerID = p.ID
	}

	var manager *models.User
	if managerID != p.ID {
		m, err := s.loadUser(ctx, managerID, errs.NotFound("Manager not found"))
		if err != nil {
			return nil, err
		}
		manager = m
	}
	team, err := s.resolveTeam(ctx, req.Team)
	if err != nil {
		return nil, err
	}

	if err := s.authorize("create project", policy.CanCreateProject(p)); err != nil {
		return nil, err
	}
	name, err := policy.RequireText("Project name", req.Name)
	if err != nil {
		return nil, err
	}
	description, err := policy.RequireText("Project description", req.Description)
	if err != nil {
		return nil, err
	}
	if manager != nil {
		if err := policy.ValidateManager(manager); err != nil {
			return nil, err
		}
	}

	status := req.Status
	if status == "" {
		status = models.ProjectPlanning
	}
	if !status.Valid() {
		return nil, errs.Invalidf("Invalid project status %q", status)
	}

	now := s.now()
	start := now
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if err := policy.ValidateDates(start, req.EndDate); err != nil {
		return nil, err
	}

	proj := &models.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		ManagerID:   managerID,
		Team:        team,
		Status:      status,
		StartDate:   start,
		EndDate:     req.EndDate,
		CreatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, proj); err != nil {
		return nil, s.fail("create project", err, errUserNotFound)
	}
	return proj, nil
}

// resolveTeam drops blanks and duplicates and checks that every member exists.
func (s *Service) resolveTeam(ctx context.Context, ids []string) ([]string, error) {
	team := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(team, id) {
			continue
		}
		if _, err := s.loadUser(ctx, id, errs.NotFound("Team member not found: "+id)); err != nil {
			return nil, err
		}
		team = append(team, id)
	}
	return team, nil
}

func (s *Service) UpdateProject(ctx context.Context, p models.Principal, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	proj, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := proj.ManagerID
	var manager *models.User
	if req.Manager != nil && *req.Manager != proj.ManagerID {
		m, err := s.loadUser(ctx, *req.Manager, errs.NotFound("Manager not found"))
		if err != nil {
			return nil, err
		}
		manager = m
	}

	if err := s.authorize("update project", policy.CanUpdateProject(p, proj)); err != nil {
		return nil, err
	}
	if manager != nil {
		if err := s.authorize("reassign manager", policy.CanReassignManager(p)); err != nil {
			return nil, err
		}
		if err := policy.ValidateManager(manager); err != nil {
			return nil, err
		}
		proj.ManagerID = manager.ID
	}

	if req.Name != nil {
		if proj.Name, err = policy.RequireText("Project name", *req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if proj.Description, err = policy.RequireText("Project description", *req.Description); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, errs.Invalidf("Invalid project status %q", *req.Status)
		}
		proj.Status = *req.Status
	}
	if req.StartDate != nil {
		proj.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		proj.EndDate = req.EndDate
	}
	if err := policy.ValidateDates(proj.StartDate, proj.EndDate); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProject(ctx, proj); err != nil {
		return nil, s.fail("update project", err, errProjectNotFound)
	}
	if proj.ManagerID != previous {
		// the previous manager keeps their tasks only if they are on the team
		n, err := s.store.UnassignTasks(ctx, proj.ID, previous)
		if err != nil {
			return nil, s.fail("unassign tasks", err, errProjectNotFound)
		}
		s.log.WithFields(logrus.Fields{"project": proj.ID, "manager": proj.ManagerID, "unassigned": n}).Info("project manager changed")
	}
	if err := s.fillProgress(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}

// DeleteProject removes the project and every task in it.
func (s *Service) DeleteProject(ctx context.Context, p models.Principal, id string) error {
	proj, err := s.loadProject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize("delete project", policy.CanDeleteProject(p)); err != nil {
		return err
	}

	tasks, err := s.projectTasks(ctx, proj.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, proj.ID); err != nil {
		return s.fail("delete project", err, errProjectNotFound)
	}

	s.metrics.ProjectDeleted(len(tasks))
	s.log.WithFields(logrus.Fields{"project": proj.ID, "tasks": len(tasks), "by": p.ID}).Info("project deleted")
	return nil
}

func (s *Service) AddTeamMember(ctx context.Context, p models.Principal, projectID, userID string) (*models.Project, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, userID, errUserNotFound); err != nil {
		return nil, err
	}
	if err := s.authorize("manage team", policy.CanManageTeam(p, proj)); err != nil {
		return nil, err
	}
	if err := policy.ValidateTeamAdd(proj, userID); err != nil {
		return nil, err
	}

	// the store append is the authority; a concurrent add surfaces here
	if err := s.store.AddTeamMember(ctx, proj.ID, userID); err != nil {
		return nil, s.fail("add team member", err, errProjectNotFound)
	}
	return s.reload(ctx, proj.ID)
}

// RemoveTeamMember takes a user off the team. Tasks in the project assigned
// to them become unassigned unless they still manage the project.
func (s *Service) RemoveTeamMember(ctx context.Context, p models.Principal, projectID, userID string) (*models.Project, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("manage team", policy.CanManageTeam(p, proj)); err != nil {
		return nil, err
	}
	if err := policy.ValidateTeamRemove(proj, userID); err != nil {
		return nil, err
	}

	if err := s.store.RemoveTeamMember(ctx, proj.ID, userID); err != nil {
		return nil, s.fail("remove team member", err, errProjectNotFound)
	}
	return s.reload(ctx, proj.ID)
}

func (s *Service) reload(ctx context.Context, projectID string) (*models.Project, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.fillProgress(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}

func (s *Service) ProjectStats(ctx context.Context, p models.Principal, id string) (*stats.Project, error) {
	proj, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("view project", policy.CanViewProject(p, proj)); err != nil {
		return nil, err
	}

	tasks, err := s.projectTasks(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	st := stats.ForProject(tasks, s.now())
	return &st, nil
}
