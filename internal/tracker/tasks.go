package tracker

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/stats"
	"kyri56xcaesar/tasktracker/internal/store"
)

// ListTasks returns the caller's visible tasks narrowed by q. Filters only
// ever narrow visibility, they never widen it.
func (s *Service) ListTasks(ctx context.Context, p models.Principal, q models.TaskQuery) ([]models.Task, error) {
	f := store.TaskFilter{
		Scope:      policy.TasksVisibleTo(p),
		ProjectID:  strings.TrimSpace(q.Project),
		AssignedTo: strings.TrimSpace(q.AssignedTo),
		Limit:      q.Limit,
	}
	if q.Status != "" {
		st, err := models.ParseTaskStatus(q.Status)
		if err != nil {
			return nil, errs.Invalid(err.Error())
		}
		f.Status = st
	}
	if q.Priority != "" {
		pr, err := models.ParsePriority(q.Priority)
		if err != nil {
			return nil, errs.Invalid(err.Error())
		}
		f.Priority = pr
	}

	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, s.fail("list tasks", err, nil)
	}
	return tasks, nil
}

func (s *Service) GetTask(ctx context.Context, p models.Principal, id string) (*models.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("view task", policy.CanViewTask(p, proj, t)); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) CreateTask(ctx context.Context, p models.Principal, req models.CreateTaskRequest) (*models.Task, error) {
	proj, err := s.loadProject(ctx, strings.TrimSpace(req.Project))
	if err != nil {
		return nil, err
	}
	assignee := strings.TrimSpace(req.AssignedTo)
	if assignee != "" {
		if _, err := s.loadUser(ctx, assignee, errs.NotFound("Assigned user not found")); err != nil {
			return nil, err
		}
	}

	if err := s.authorize("create task", policy.CanCreateTask(p, proj)); err != nil {
		return nil, err
	}
	if err := policy.ValidateAssignee(proj, assignee); err != nil {
		return nil, err
	}
	title, err := policy.RequireText("Task title", req.Title)
	if err != nil {
		return nil, err
	}
	description, err := policy.RequireText("Task description", req.Description)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, errs.Invalidf("Invalid priority %q", priority)
	}
	status := req.Status
	if status == "" {
		status = models.TaskToDo
	}

	now := s.now()
	t := &models.Task{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    description,
		ProjectID:      proj.ID,
		AssignedTo:     assignee,
		CreatedBy:      p.ID,
		Priority:       priority,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Comments:       []models.Comment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := policy.ApplyStatus(t, status, now); err != nil {
		return nil, err
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, s.fail("create task", err, errProjectNotFound)
	}
	return t, nil
}

// UpdateTask edits the general fields. The project never changes; an empty
// assignee clears the assignment.
func (s *Service) UpdateTask(ctx context.Context, p models.Principal, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}

	reassign := req.AssignedTo != nil && strings.TrimSpace(*req.AssignedTo) != t.AssignedTo
	var assignee string
	if reassign {
		assignee = strings.TrimSpace(*req.AssignedTo)
		if assignee != "" {
			if _, err := s.loadUser(ctx, assignee, errs.NotFound("Assigned user not found")); err != nil {
				return nil, err
			}
		}
	}

	if err := s.authorize("update task", policy.CanUpdateTask(p, proj, t)); err != nil {
		return nil, err
	}
	if reassign {
		if err := policy.ValidateAssignee(proj, assignee); err != nil {
			return nil, err
		}
		t.AssignedTo = assignee
	}

	now := s.now()
	changed := false
	if req.Status != nil {
		if changed, err = policy.ApplyStatus(t, *req.Status, now); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, errs.Invalidf("Invalid priority %q", *req.Priority)
		}
		t.Priority = *req.Priority
	}
	if req.Title != nil {
		if t.Title, err = policy.RequireText("Task title", *req.Title); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if t.Description, err = policy.RequireText("Task description", *req.Description); err != nil {
			return nil, err
		}
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.EstimatedHours != nil {
		t.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	t.UpdatedAt = now

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, s.fail("update task", err, errTaskNotFound)
	}
	if changed {
		s.metrics.StatusChanged(string(t.Status))
	}
	return t, nil
}

// UpdateTaskStatus is the narrow status change used by boards and the
// task page.
func (s *Service) UpdateTaskStatus(ctx context.Context, p models.Principal, id string, status models.TaskStatus) (*models.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("update task", policy.CanUpdateTask(p, proj, t)); err != nil {
		return nil, err
	}

	now := s.now()
	changed, err := policy.ApplyStatus(t, status, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return t, nil
	}

	t.UpdatedAt = now
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, s.fail("update task", err, errTaskNotFound)
	}
	s.metrics.StatusChanged(string(t.Status))
	s.log.WithFields(logrus.Fields{"task": t.ID, "status": t.Status, "by": p.ID}).Debug("task status changed")
	return t, nil
}

func (s *Service) DeleteTask(ctx context.Context, p models.Principal, id string) error {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize("delete task", policy.CanDeleteTask(p, proj)); err != nil {
		return err
	}
	return s.fail("delete task", s.store.DeleteTask(ctx, t.ID), errTaskNotFound)
}

// AddComment appends a comment and returns the updated task.
func (s *Service) AddComment(ctx context.Context, p models.Principal, id string, req models.CommentRequest) (*models.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("comment", policy.CanComment(p, proj, t)); err != nil {
		return nil, err
	}
	text, err := policy.ValidateComment(req.Text)
	if err != nil {
		return nil, err
	}

	c := models.Comment{
		ID:        uuid.NewString(),
		UserID:    p.ID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.store.AddComment(ctx, t.ID, c); err != nil {
		return nil, s.fail("add comment", err, errTaskNotFound)
	}

	updated, err := s.store.GetTask(ctx, t.ID)
	if err != nil {
		return nil, s.fail("get task", err, errTaskNotFound)
	}
	return updated, nil
}

// TaskStats aggregates the tasks of every project the caller takes part in.
func (s *Service) TaskStats(ctx context.Context, p models.Principal) (*stats.Tasks, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		Scope:     policy.StatsVisibleTo(p),
		Unbounded: true,
	})
	if err != nil {
		return nil, s.fail("list tasks", err, nil)
	}
	st := stats.ForTasks(tasks, p, s.now())
	return &st, nil
}
