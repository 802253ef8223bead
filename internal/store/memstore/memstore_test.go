package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/store"
	"kyri56xcaesar/tasktracker/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, New())
}

func seed(t *testing.T) (*Store, *models.Project) {
	t.Helper()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "pm", Email: "pm@example.com", Role: models.RoleProjectManager}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "dev", Email: "dev@example.com", Role: models.RoleTeamMember}))

	p := &models.Project{ID: "p1", Name: "Apollo", ManagerID: "pm", Team: []string{"dev"}, CreatedAt: time.Now()}
	require.NoError(t, s.CreateProject(ctx, p))
	return s, p
}

func TestDuplicateEmail(t *testing.T) {
	s, _ := seed(t)
	err := s.CreateUser(context.Background(), &models.User{ID: "x", Email: "PM@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestTeamMembership(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)

	assert.ErrorIs(t, s.AddTeamMember(ctx, p.ID, "dev"), store.ErrAlreadyMember)
	assert.ErrorIs(t, s.RemoveTeamMember(ctx, p.ID, "ghost"), store.ErrNotMember)
	assert.ErrorIs(t, s.AddTeamMember(ctx, "nope", "dev"), store.ErrNotFound)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, got.Team)
}

func TestConcurrentAddTeamMember(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AddTeamMember(ctx, p.ID, "newbie") == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "newbie"}, got.Team)
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.CreateTask(ctx, &models.Task{ID: id, ProjectID: p.ID}))
	}
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p2", ManagerID: "pm"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "other", ProjectID: "p2"}))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	left, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}, ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, left)

	all, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "other", all[0].ID)
}

func TestListTasksScopeAndFilters(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p2", ManagerID: "dev"}))

	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "in", ProjectID: p.ID, Status: models.TaskToDo}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "mine", ProjectID: "p2", AssignedTo: "dev", Status: models.TaskReview}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "hidden", ProjectID: "p2"}))
	// handing p2 over leaves dev with a task outside their projects
	require.NoError(t, s.UpdateProject(ctx, &models.Project{ID: "p2", ManagerID: "boss"}))

	dev := models.Principal{ID: "dev", Role: models.RoleTeamMember}
	got, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(dev)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"in", "mine"}, ids(got))

	got, err = s.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(dev), Status: models.TaskReview})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, ids(got))

	pm := models.Principal{ID: "pm", Role: models.RoleProjectManager}
	got, err = s.ListTasks(ctx, store.TaskFilter{Scope: policy.TasksVisibleTo(pm), ProjectID: "p2"})
	require.NoError(t, err)
	assert.Empty(t, got, "project filter cannot widen the visible set")
}

func TestDetachUser(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t", ProjectID: p.ID, AssignedTo: "dev"}))

	require.NoError(t, s.DetachUser(ctx, "dev"))

	proj, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, proj.Team)
	task, err := s.GetTask(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, task.AssignedTo)
}

func TestUpdateTaskKeepsComments(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t", ProjectID: p.ID}))
	require.NoError(t, s.AddComment(ctx, "t", models.Comment{ID: "c1", UserID: "dev", Text: "hi"}))

	task, err := s.GetTask(ctx, "t")
	require.NoError(t, err)
	task.Title = "renamed"
	task.Comments = nil
	task.ProjectID = "elsewhere"
	require.NoError(t, s.UpdateTask(ctx, task))

	task, err = s.GetTask(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "renamed", task.Title)
	assert.Equal(t, p.ID, task.ProjectID)
	require.Len(t, task.Comments, 1)
	assert.Equal(t, "hi", task.Comments[0].Text)
}

func TestAssigneeGuard(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "out", Email: "out@example.com", Role: models.RoleTeamMember}))

	err := s.CreateTask(ctx, &models.Task{ID: "t", ProjectID: p.ID, AssignedTo: "out"})
	assert.ErrorIs(t, err, store.ErrNotAssignable)

	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t", ProjectID: p.ID, AssignedTo: "dev"}))
	require.NoError(t, s.RemoveTeamMember(ctx, p.ID, "dev"))

	task, err := s.GetTask(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, task.AssignedTo)

	task.AssignedTo = "dev"
	assert.ErrorIs(t, s.UpdateTask(ctx, task), store.ErrNotAssignable)
	task.AssignedTo = "pm"
	require.NoError(t, s.UpdateTask(ctx, task))
}

func TestConcurrentReassignAndRemove(t *testing.T) {
	ctx := context.Background()
	s, p := seed(t)
	for i := range 50 {
		require.NoError(t, s.CreateTask(ctx, &models.Task{ID: fmt.Sprintf("t%d", i), ProjectID: p.ID}))
	}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := s.GetTask(ctx, fmt.Sprintf("t%d", i))
			if err != nil {
				return
			}
			task.AssignedTo = "dev"
			_ = s.UpdateTask(ctx, task)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RemoveTeamMember(ctx, p.ID, "dev")
	}()
	wg.Wait()

	left, err := s.ListTasks(ctx, store.TaskFilter{Scope: policy.TaskScope{All: true}, AssignedTo: "dev"})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestListProjectsSearchAndOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)
	end := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	base := time.Now()
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "z", Name: "zephyr", ManagerID: "pm", EndDate: &end, CreatedAt: base.Add(-time.Hour)}))
	for i := range 10 {
		require.NoError(t, s.CreateProject(ctx, &models.Project{ID: fmt.Sprintf("n%d", i), Name: "Newer", ManagerID: "pm", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	all := store.ProjectFilter{Scope: policy.ProjectScope{All: true}}

	f := all
	f.Search = "ZEPH"
	f.Limit = 3
	got, err := s.ListProjects(ctx, f)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "z", got[0].ID)

	f = all
	f.Order = store.OrderEndDate
	f.Limit = 1
	got, err = s.ListProjects(ctx, f)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "z", got[0].ID)

	f = all
	f.Order = store.OrderName
	f.Limit = 2
	got, err = s.ListProjects(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "n9"}, []string{got[0].ID, got[1].ID})
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
