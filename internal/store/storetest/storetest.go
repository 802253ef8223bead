// Package storetest holds the behaviour every store.Store backend must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/store"
)

// Run executes the shared suite against a single store instance. Every case
// uses fresh ids so a shared database is fine.
func Run(t *testing.T, s store.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, s) })
	t.Run("TeamMembership", func(t *testing.T) { testTeam(t, s) })
	t.Run("ConcurrentTeamAdd", func(t *testing.T) { testConcurrentAdd(t, s) })
	t.Run("CascadeDelete", func(t *testing.T) { testCascade(t, s) })
	t.Run("TaskScopes", func(t *testing.T) { testScopes(t, s) })
	t.Run("TaskRoundTrip", func(t *testing.T) { testTaskRoundTrip(t, s) })
	t.Run("DetachUser", func(t *testing.T) { testDetach(t, s) })
	t.Run("AssigneeGuard", func(t *testing.T) { testAssigneeGuard(t, s) })
	t.Run("RemoveMemberUnassigns", func(t *testing.T) { testRemoveUnassigns(t, s) })
	t.Run("UnboundedReads", func(t *testing.T) { testUnbounded(t, s) })
	t.Run("ProjectSearchAndOrder", func(t *testing.T) { testProjectSearch(t, s) })
}

var clock = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func tick() time.Time {
	clock = clock.Add(time.Second)
	return clock
}

func newUser(t *testing.T, s store.Store, role models.Role) *models.User {
	t.Helper()
	id := uuid.NewString()
	u := &models.User{
		ID:             id,
		Name:           "user " + id[:8],
		Email:          id[:8] + "@example.com",
		PasswordHash:   "x",
		Role:           role,
		ProfilePicture: models.DefaultProfilePicture,
		CreatedAt:      tick(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func newProject(t *testing.T, s store.Store, managerID string, team ...string) *models.Project {
	t.Helper()
	p := &models.Project{
		ID:          uuid.NewString(),
		Name:        "project",
		Description: "desc",
		ManagerID:   managerID,
		Team:        team,
		Status:      models.ProjectPlanning,
		StartDate:   tick(),
		CreatedAt:   tick(),
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func newTask(t *testing.T, s store.Store, projectID, creator, assignee string) *models.Task {
	t.Helper()
	now := tick()
	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       "task",
		Description: "desc",
		ProjectID:   projectID,
		AssignedTo:  assignee,
		CreatedBy:   creator,
		Status:      models.TaskToDo,
		Priority:    models.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser(t, s, models.RoleTeamMember)

	got, err := s.GetUserByEmail(ctx, strings.ToUpper(u.Email))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleTeamMember, got.Role)

	dup := *u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrDuplicate)

	got.Bio = "hello"
	got.Role = models.RoleProjectManager
	require.NoError(t, s.UpdateUser(ctx, got))
	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Bio)
	assert.Equal(t, models.RoleProjectManager, again.Role)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), store.ErrNotFound)
}

func testTeam(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)
	other := newUser(t, s, models.RoleTeamMember)
	p := newProject(t, s, pm.ID, dev.ID)

	assert.ErrorIs(t, s.AddTeamMember(ctx, p.ID, dev.ID), store.ErrAlreadyMember)
	assert.ErrorIs(t, s.RemoveTeamMember(ctx, p.ID, other.ID), store.ErrNotMember)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{dev.ID}, got.Team)

	require.NoError(t, s.AddTeamMember(ctx, p.ID, other.ID))
	require.NoError(t, s.RemoveTeamMember(ctx, p.ID, dev.ID))
	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, got.Team)

	n, err := s.CountManagedProjects(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentAdd(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)
	p := newProject(t, s, pm.ID)

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := s.AddTeamMember(ctx, p.ID, dev.ID); err {
			case nil:
				ok.Add(1)
			case store.ErrAlreadyMember:
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(15), dup.Load())
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{dev.ID}, got.Team)
}

func testCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	p := newProject(t, s, pm.ID)
	keep := newProject(t, s, pm.ID)
	for range 3 {
		newTask(t, s, p.ID, pm.ID, "")
	}
	survivor := newTask(t, s, keep.ID, pm.ID, "")

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	left, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}, ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetTask(ctx, survivor.ID)
	assert.NoError(t, err)
	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), store.ErrNotFound)
}

func testScopes(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	pm2 := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)

	mine := newProject(t, s, pm.ID, dev.ID)
	theirs := newProject(t, s, dev.ID)

	inMine := newTask(t, s, mine.ID, pm.ID, "")
	assigned := newTask(t, s, theirs.ID, dev.ID, dev.ID)
	hidden := newTask(t, s, theirs.ID, dev.ID, "")

	// a manager handover at the store level keeps old assignments
	theirs.ManagerID = pm2.ID
	require.NoError(t, s.UpdateProject(ctx, theirs))

	devP := models.Principal{ID: dev.ID, Role: models.RoleTeamMember}
	got, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(devP)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{inMine.ID, assigned.ID}, ids(got))
	assert.NotContains(t, ids(got), hidden.ID)

	pmP := models.Principal{ID: pm.ID, Role: models.RoleProjectManager}
	got, err = s.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(pmP)})
	require.NoError(t, err)
	assert.Equal(t, []string{inMine.ID}, ids(got))

	got, err = s.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(pmP), ProjectID: theirs.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	projects, err := s.ListProjects(ctx, store.ProjectFilter{Scope: policy.ProjectsVisibleTo(devP)})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, mine.ID, projects[0].ID)

	projects, err = s.ListProjects(ctx, store.ProjectFilter{Scope: policy.ProjectsVisibleTo(pmP)})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, mine.ID, projects[0].ID)
}

func testTaskRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	p := newProject(t, s, pm.ID)
	task := newTask(t, s, p.ID, pm.ID, pm.ID)

	due := tick().Add(48 * time.Hour)
	done := tick()
	task.Status = models.TaskCompleted
	task.CompletedAt = &done
	task.DueDate = &due
	task.EstimatedHours = 3.5
	require.NoError(t, s.UpdateTask(ctx, task))

	require.NoError(t, s.AddComment(ctx, task.ID, models.Comment{ID: uuid.NewString(), UserID: pm.ID, Text: "first", CreatedAt: tick()}))
	require.NoError(t, s.AddComment(ctx, task.ID, models.Comment{ID: uuid.NewString(), UserID: pm.ID, Text: "second", CreatedAt: tick()}))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.InDelta(t, 3.5, got.EstimatedHours, 0.001)
	assert.Equal(t, pm.ID, got.AssignedTo)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "first", got.Comments[0].Text)
	assert.Equal(t, "second", got.Comments[1].Text)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDetach(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)
	p := newProject(t, s, pm.ID, dev.ID)
	task := newTask(t, s, p.ID, pm.ID, dev.ID)

	require.NoError(t, s.DetachUser(ctx, dev.ID))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Team)
	gotTask, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, gotTask.AssignedTo)
}

func testAssigneeGuard(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)
	outsider := newUser(t, s, models.RoleTeamMember)
	p := newProject(t, s, pm.ID, dev.ID)

	bad := &models.Task{
		ID: uuid.NewString(), Title: "x", ProjectID: p.ID, AssignedTo: outsider.ID, CreatedBy: pm.ID,
		Status: models.TaskToDo, Priority: models.PriorityLow, CreatedAt: tick(), UpdatedAt: tick(),
	}
	assert.ErrorIs(t, s.CreateTask(ctx, bad), store.ErrNotAssignable)
	_, err := s.GetTask(ctx, bad.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	task := newTask(t, s, p.ID, pm.ID, dev.ID)
	task.AssignedTo = outsider.ID
	assert.ErrorIs(t, s.UpdateTask(ctx, task), store.ErrNotAssignable)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, dev.ID, got.AssignedTo)

	got.AssignedTo = pm.ID
	require.NoError(t, s.UpdateTask(ctx, got))
	got.AssignedTo = ""
	require.NoError(t, s.UpdateTask(ctx, got))
}

func testRemoveUnassigns(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)
	p := newProject(t, s, pm.ID, dev.ID, pm.ID)
	other := newProject(t, s, pm.ID, dev.ID)

	gone := newTask(t, s, p.ID, pm.ID, dev.ID)
	kept := newTask(t, s, other.ID, pm.ID, dev.ID)
	managed := newTask(t, s, p.ID, pm.ID, pm.ID)

	require.NoError(t, s.RemoveTeamMember(ctx, p.ID, dev.ID))
	// the manager stays assignable after leaving the team
	require.NoError(t, s.RemoveTeamMember(ctx, p.ID, pm.ID))

	for id, want := range map[string]string{gone.ID: "", kept.ID: dev.ID, managed.ID: pm.ID} {
		got, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.AssignedTo)
	}

	n, err := s.UnassignTasks(ctx, other.ID, dev.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "members keep their tasks")

	_, err = s.UnassignTasks(ctx, uuid.NewString(), dev.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// testUnbounded writes more tasks than a page may hold.
func testUnbounded(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	dev := newUser(t, s, models.RoleTeamMember)
	p := newProject(t, s, pm.ID, dev.ID)

	total := store.MaxLimit + 100
	for range total {
		newTask(t, s, p.ID, pm.ID, dev.ID)
	}

	paged, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}, ProjectID: p.ID, Limit: total})
	require.NoError(t, err)
	assert.Len(t, paged, store.MaxLimit)

	all, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}, ProjectID: p.ID, Unbounded: true})
	require.NoError(t, err)
	assert.Len(t, all, total)

	require.NoError(t, s.RemoveTeamMember(ctx, p.ID, dev.ID))
	left, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}, AssignedTo: dev.ID, Unbounded: true})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func testProjectSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	pm := newUser(t, s, models.RoleProjectManager)
	pmP := models.Principal{ID: pm.ID, Role: models.RoleProjectManager}

	end := tick().Add(24 * time.Hour)
	old := newProject(t, s, pm.ID)
	old.Name = "Zephyr 100%"
	old.EndDate = &end
	require.NoError(t, s.UpdateProject(ctx, old))

	for i := range 5 {
		p := newProject(t, s, pm.ID)
		p.Name = fmt.Sprintf("beta %d", i)
		require.NoError(t, s.UpdateProject(ctx, p))
	}
	alpha := newProject(t, s, pm.ID)
	alpha.Name = "Alpha"
	require.NoError(t, s.UpdateProject(ctx, alpha))

	scope := policy.ProjectsVisibleTo(pmP)
	got, err := s.ListProjects(ctx, store.ProjectFilter{Scope: scope, Search: "zEPHYR", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)

	got, err = s.ListProjects(ctx, store.ProjectFilter{Scope: scope, Search: "100%"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	got, err = s.ListProjects(ctx, store.ProjectFilter{Scope: scope, Search: "_"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListProjects(ctx, store.ProjectFilter{Scope: scope, Order: store.OrderName, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Alpha", "beta 0"}, []string{got[0].Name, got[1].Name})

	got, err = s.ListProjects(ctx, store.ProjectFilter{Scope: scope, Order: store.OrderEndDate, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)

	got, err = s.ListProjects(ctx, store.ProjectFilter{Scope: scope, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alpha.ID, got[0].ID)
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
