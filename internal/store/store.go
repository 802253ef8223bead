// Package store defines the persistence contract shared by the postgres,
// mongo and in-memory backends.
package store

import (
	"context"
	"errors"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrDuplicate     = errors.New("store: duplicate key")
	ErrAlreadyMember = errors.New("store: user already in team")
	ErrNotMember     = errors.New("store: user not in team")
	// ErrNotAssignable means the assignee is neither manager nor team member
	// of the task's project at write time.
	ErrNotAssignable = errors.New("store: assignee not in project")
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// NormalizeLimit clamps a requested page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ProjectOrder selects the project list ordering. Ties always fall back to
// newest first.
type ProjectOrder string

const (
	OrderNewest  ProjectOrder = ""
	OrderName    ProjectOrder = "name"
	OrderStatus  ProjectOrder = "status"
	OrderEndDate ProjectOrder = "endDate"
)

// ProjectFilter is applied by the backend before the limit. Search matches a
// case-insensitive substring of the name or description.
type ProjectFilter struct {
	Scope  policy.ProjectScope
	Status models.ProjectStatus
	Search string
	Order  ProjectOrder
	Limit  int
	// Unbounded ignores Limit and returns every match.
	Unbounded bool
}

// TaskFilter combines a visibility scope with optional field filters. All
// set fields must match.
type TaskFilter struct {
	Scope      policy.TaskScope
	ProjectID  string
	Status     models.TaskStatus
	Priority   models.Priority
	AssignedTo string
	Limit      int
	// Unbounded ignores Limit; used for aggregates and bulk reads.
	Unbounded bool
}

type Users interface {
	// CreateUser returns ErrDuplicate when the e-mail is taken.
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error
	// DetachUser removes the user from every team and unassigns their tasks.
	DetachUser(ctx context.Context, id string) error
	CountAdmins(ctx context.Context) (int, error)
}

type Projects interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	// UpdateProject writes every field except the team.
	UpdateProject(ctx context.Context, p *models.Project) error
	// AddTeamMember is a single atomic append; ErrAlreadyMember when present.
	AddTeamMember(ctx context.Context, projectID, userID string) error
	// RemoveTeamMember takes the user off the team and, in the same atomic
	// step, unassigns their tasks in the project unless they manage it.
	// ErrNotMember when absent.
	RemoveTeamMember(ctx context.Context, projectID, userID string) error
	// UnassignTasks clears every assignment of userID in the project unless
	// the user still manages or belongs to it. Returns the number cleared.
	UnassignTasks(ctx context.Context, projectID, userID string) (int, error)
	// DeleteProject removes the project together with all of its tasks.
	DeleteProject(ctx context.Context, id string) error
	CountManagedProjects(ctx context.Context, userID string) (int, error)
}

type Tasks interface {
	// CreateTask and UpdateTask return ErrNotAssignable when a new assignee
	// is not the manager or a team member of the project. An unchanged
	// assignee is not re-checked.
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	// ListTasks returns newest first, without comments.
	ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error)
	// UpdateTask writes every field except project and comments.
	UpdateTask(ctx context.Context, t *models.Task) error
	// AddComment appends atomically.
	AddComment(ctx context.Context, taskID string, c models.Comment) error
	DeleteTask(ctx context.Context, id string) error
}

type Store interface {
	Users
	Projects
	Tasks

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
