package tracker

import (
	"context"
	"errors"
	"sort"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/stats"
	"kyri56xcaesar/tasktracker/internal/store"
	"kyri56xcaesar/tasktracker/internal/utils"
)

const recentItems = 5

// Names maps user ids to display names. Ids of deleted users are absent.
type Names map[string]string

// Of returns the display name for id, or "Unknown user".
func (n Names) Of(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := n[id]; ok {
		return name
	}
	return "Unknown user"
}

func (s *Service) names(ctx context.Context, ids ...string) (Names, error) {
	out := make(Names, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		u, err := s.store.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, s.fail("get user", err, nil)
		}
		out[id] = u.Name
	}
	return out, nil
}

type Dashboard struct {
	Projects       []models.Project `json:"projects"`
	Tasks          []models.Task    `json:"tasks"`
	CompletedTasks int              `json:"completedTasks"`
	PendingTasks   int              `json:"pendingTasks"`
	Stats          stats.Tasks      `json:"stats"`
	Names          Names            `json:"-"`
}

// Dashboard collects the newest projects and most recently touched tasks the
// caller can see, plus their task statistics.
func (s *Service) Dashboard(ctx context.Context, p models.Principal) (*Dashboard, error) {
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{Scope: policy.ProjectsVisibleTo(p), Limit: recentItems})
	if err != nil {
		return nil, s.fail("list projects", err, nil)
	}
	for i := range projects {
		if err := s.fillProgress(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}

	visible, err := s.store.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(p), Unbounded: true})
	if err != nil {
		return nil, s.fail("list tasks", err, nil)
	}
	completed := utils.Filter(visible, func(t models.Task) bool { return t.Status == models.TaskCompleted })

	recent := append([]models.Task(nil), visible...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	if len(recent) > recentItems {
		recent = recent[:recentItems]
	}

	st, err := s.TaskStats(ctx, p)
	if err != nil {
		return nil, err
	}

	ids := utils.Map(projects, func(proj models.Project) string { return proj.ManagerID })
	ids = append(ids, utils.Map(recent, func(t models.Task) string { return t.AssignedTo })...)
	names, err := s.names(ctx, ids...)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Projects:       projects,
		Tasks:          recent,
		CompletedTasks: len(completed),
		PendingTasks:   len(visible) - len(completed),
		Stats:          *st,
		Names:          names,
	}, nil
}

// Calendar lists due dates of visible tasks and end dates of visible
// projects.
func (s *Service) Calendar(ctx context.Context, p models.Principal) ([]stats.Event, error) {
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{Scope: policy.ProjectsVisibleTo(p), Unbounded: true})
	if err != nil {
		return nil, s.fail("list projects", err, nil)
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(p), Unbounded: true})
	if err != nil {
		return nil, s.fail("list tasks", err, nil)
	}
	return stats.CalendarEvents(projects, tasks), nil
}

// ProjectView is everything the project page renders.
type ProjectView struct {
	Project  *models.Project
	Tasks    []models.Task
	Stats    stats.Project
	Names    Names
	CanEdit  bool
	CanAdmin bool
}

func (s *Service) ProjectPage(ctx context.Context, p models.Principal, id string) (*ProjectView, error) {
	proj, err := s.GetProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.projectTasks(ctx, proj.ID)
	if err != nil {
		return nil, err
	}

	ids := append([]string{proj.ManagerID}, proj.Team...)
	ids = append(ids, utils.Map(tasks, func(t models.Task) string { return t.AssignedTo })...)
	names, err := s.names(ctx, ids...)
	if err != nil {
		return nil, err
	}

	return &ProjectView{
		Project:  proj,
		Tasks:    tasks,
		Stats:    stats.ForProject(tasks, s.now()),
		Names:    names,
		CanEdit:  policy.CanUpdateProject(p, proj) == nil,
		CanAdmin: policy.CanDeleteProject(p) == nil,
	}, nil
}

// TaskView is everything the task page renders.
type TaskView struct {
	Task      *models.Task
	Project   *models.Project
	Names     Names
	CanEdit   bool
	CanDelete bool
}

func (s *Service) TaskPage(ctx context.Context, p models.Principal, id string) (*TaskView, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("view task", policy.CanViewTask(p, proj, t)); err != nil {
		return nil, err
	}

	ids := []string{proj.ManagerID, t.AssignedTo, t.CreatedBy}
	ids = append(ids, proj.Team...)
	ids = append(ids, utils.Map(t.Comments, func(c models.Comment) string { return c.UserID })...)
	names, err := s.names(ctx, ids...)
	if err != nil {
		return nil, err
	}

	return &TaskView{
		Task:      t,
		Project:   proj,
		Names:     names,
		CanEdit:   policy.CanUpdateTask(p, proj, t) == nil,
		CanDelete: policy.CanDeleteTask(p, proj) == nil,
	}, nil
}

// TaskNames resolves the assignees of a task list and the names of their
// projects for list pages.
func (s *Service) TaskNames(ctx context.Context, tasks []models.Task) (Names, map[string]string, error) {
	names, err := s.names(ctx, utils.Map(tasks, func(t models.Task) string { return t.AssignedTo })...)
	if err != nil {
		return nil, nil, err
	}
	projects := make(map[string]string)
	for _, t := range tasks {
		if _, ok := projects[t.ProjectID]; ok {
			continue
		}
		proj, err := s.store.GetProject(ctx, t.ProjectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, nil, s.fail("get project", err, nil)
		}
		projects[t.ProjectID] = proj.Name
	}
	return names, projects, nil
}

// ManagerNames resolves the managers of a project list.
func (s *Service) ManagerNames(ctx context.Context, projects []models.Project) (Names, error) {
	return s.names(ctx, utils.Map(projects, func(p models.Project) string { return p.ManagerID })...)
}
