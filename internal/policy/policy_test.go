package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/models"
)

var (
	admin    = models.Principal{ID: "u-admin", Role: models.RoleAdmin}
	manager  = models.Principal{ID: "u-pm", Role: models.RoleProjectManager}
	otherPM  = models.Principal{ID: "u-pm2", Role: models.RoleProjectManager}
	member   = models.Principal{ID: "u-member", Role: models.RoleTeamMember}
	outsider = models.Principal{ID: "u-out", Role: models.RoleTeamMember}
)

func project() *models.Project {
	return &models.Project{ID: "p1", ManagerID: manager.ID, Team: []string{member.ID}}
}

func assertKind(t *testing.T, err error, k errs.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, k, errs.KindOf(err))
}

func TestProjectRules(t *testing.T) {
	p := project()

	assert.NoError(t, CanCreateProject(admin))
	assert.NoError(t, CanCreateProject(manager))
	assertKind(t, CanCreateProject(member), errs.KindForbidden)

	assert.NoError(t, CanViewProject(member, p))
	assert.NoError(t, CanViewProject(manager, p))
	assert.NoError(t, CanViewProject(admin, p))
	assertKind(t, CanViewProject(outsider, p), errs.KindForbidden)
	assertKind(t, CanViewProject(otherPM, p), errs.KindForbidden)

	assert.NoError(t, CanUpdateProject(manager, p))
	assert.NoError(t, CanUpdateProject(admin, p))
	assertKind(t, CanUpdateProject(member, p), errs.KindForbidden)

	assert.NoError(t, CanReassignManager(admin))
	assertKind(t, CanReassignManager(manager), errs.KindForbidden)

	assert.NoError(t, CanDeleteProject(admin))
	assertKind(t, CanDeleteProject(manager), errs.KindForbidden)

	assert.NoError(t, CanManageTeam(manager, p))
	assertKind(t, CanManageTeam(member, p), errs.KindForbidden)
	assertKind(t, CanManageTeam(otherPM, p), errs.KindForbidden)
}

func TestTaskRules(t *testing.T) {
	p := project()
	unassigned := &models.Task{ID: "t1", ProjectID: p.ID}
	assigned := &models.Task{ID: "t2", ProjectID: p.ID, AssignedTo: member.ID}
	foreign := &models.Task{ID: "t3", ProjectID: p.ID, AssignedTo: outsider.ID}

	assert.NoError(t, CanCreateTask(member, p))
	assert.NoError(t, CanCreateTask(manager, p))
	assertKind(t, CanCreateTask(outsider, p), errs.KindForbidden)

	assert.NoError(t, CanViewTask(outsider, p, foreign), "assignee sees own task")
	assertKind(t, CanViewTask(outsider, p, unassigned), errs.KindForbidden)

	assert.NoError(t, CanUpdateTask(member, p, assigned))
	assertKind(t, CanUpdateTask(member, p, unassigned), errs.KindForbidden)
	assert.NoError(t, CanUpdateTask(manager, p, unassigned))
	assert.NoError(t, CanUpdateTask(admin, p, unassigned))

	assert.NoError(t, CanDeleteTask(manager, p))
	assertKind(t, CanDeleteTask(member, p), errs.KindForbidden)

	assert.NoError(t, CanComment(member, p, unassigned))
	assert.NoError(t, CanComment(outsider, p, foreign))
	assertKind(t, CanComment(outsider, p, unassigned), errs.KindForbidden)
}

func TestUserRules(t *testing.T) {
	assert.NoError(t, CanManageUsers(admin))
	assertKind(t, CanManageUsers(manager), errs.KindForbidden)

	assertKind(t, CanDeleteUser(admin, admin.ID), errs.KindInvalid)
	assert.NoError(t, CanDeleteUser(admin, member.ID))
	assertKind(t, CanDeleteUser(manager, member.ID), errs.KindForbidden)

	assert.NoError(t, CanEditSelf(member, member.ID))
	assertKind(t, CanEditSelf(member, manager.ID), errs.KindForbidden)
	assertKind(t, CanEditSelf(models.Principal{}, ""), errs.KindForbidden)
}

func TestCanAssignRole(t *testing.T) {
	anonymous := models.Principal{}

	assert.NoError(t, CanAssignRole(admin, models.RoleAdmin))
	assert.NoError(t, CanAssignRole(anonymous, models.RoleProjectManager))
	assert.NoError(t, CanAssignRole(anonymous, models.RoleTeamMember))
	assertKind(t, CanAssignRole(anonymous, models.RoleAdmin), errs.KindForbidden)
	assertKind(t, CanAssignRole(manager, models.RoleAdmin), errs.KindForbidden)
	assertKind(t, CanAssignRole(admin, models.Role("root")), errs.KindInvalid)
}

func TestInvariants(t *testing.T) {
	p := project()

	assert.NoError(t, ValidateManager(&models.User{Role: models.RoleProjectManager}))
	assert.NoError(t, ValidateManager(&models.User{Role: models.RoleAdmin}))
	assertKind(t, ValidateManager(&models.User{Role: models.RoleTeamMember}), errs.KindInvalid)

	assert.NoError(t, ValidateAssignee(p, ""))
	assert.NoError(t, ValidateAssignee(p, manager.ID))
	assert.NoError(t, ValidateAssignee(p, member.ID))
	assertKind(t, ValidateAssignee(p, outsider.ID), errs.KindInvalid)

	assertKind(t, ValidateTeamAdd(p, member.ID), errs.KindInvalid)
	assert.NoError(t, ValidateTeamAdd(p, outsider.ID))
	assertKind(t, ValidateTeamRemove(p, outsider.ID), errs.KindInvalid)
	assert.NoError(t, ValidateTeamRemove(p, member.ID))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)
	assertKind(t, ValidateDates(start, &before), errs.KindInvalid)
	assert.NoError(t, ValidateDates(start, nil))

	text, err := ValidateComment("  looks good  ")
	require.NoError(t, err)
	assert.Equal(t, "looks good", text)
	_, err = ValidateComment("   ")
	assertKind(t, err, errs.KindInvalid)

	_, err = RequireText("Task title", "\t \n")
	assertKind(t, err, errs.KindInvalid)
	assert.Equal(t, "Task title is required", errs.Message(err))
	name, err := RequireText("Project name", " Apollo ")
	require.NoError(t, err)
	assert.Equal(t, "Apollo", name)
}

func TestApplyStatus(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	task := &models.Task{Status: models.TaskInProgress}

	changed, err := ApplyStatus(task, models.TaskCompleted, now)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, now, *task.CompletedAt)

	// re-setting the current status keeps the original stamp
	changed, err = ApplyStatus(task, models.TaskCompleted, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, now, *task.CompletedAt)

	changed, err = ApplyStatus(task, models.TaskReview, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, task.CompletedAt)

	_, err = ApplyStatus(task, models.TaskStatus("done"), now)
	assertKind(t, err, errs.KindInvalid)
	assert.Equal(t, models.TaskReview, task.Status)
}

func TestVisibility(t *testing.T) {
	p := project()
	other := &models.Project{ID: "p2", ManagerID: otherPM.ID}
	inOther := &models.Task{ProjectID: other.ID}
	assignedInOther := &models.Task{ProjectID: other.ID, AssignedTo: member.ID}
	inP := &models.Task{ProjectID: p.ID}

	assert.True(t, ProjectsVisibleTo(admin).Matches(other))
	assert.True(t, ProjectsVisibleTo(manager).Matches(p))
	assert.False(t, ProjectsVisibleTo(manager).Matches(other))
	assert.True(t, ProjectsVisibleTo(member).Matches(p))
	assert.False(t, ProjectsVisibleTo(member).Matches(other))
	assert.False(t, ProjectScope{}.Matches(p))

	ms := TasksVisibleTo(member)
	assert.True(t, ms.Matches(p, inP))
	assert.True(t, ms.Matches(other, assignedInOther))
	assert.False(t, ms.Matches(other, inOther))

	ps := TasksVisibleTo(manager)
	assert.True(t, ps.Matches(p, inP))
	assert.False(t, ps.Matches(other, inOther))

	assert.True(t, TasksVisibleTo(admin).Matches(other, inOther))
	assert.False(t, StatsVisibleTo(member).Matches(other, assignedInOther))
}
