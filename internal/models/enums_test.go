package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumsValid(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, r.Valid(), r)
	}
	for _, s := range ProjectStatuses() {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range TaskStatuses() {
		assert.True(t, s.Valid(), s)
	}
	for _, p := range Priorities() {
		assert.True(t, p.Valid(), p)
	}

	assert.False(t, Role("superuser").Valid())
	assert.False(t, TaskStatus("done").Valid())
	assert.False(t, Priority("").Valid())
	assert.False(t, ProjectStatus("archived").Valid())
}

func TestParse(t *testing.T) {
	r, err := ParseRole("project_manager")
	require.NoError(t, err)
	assert.Equal(t, RoleProjectManager, r)

	_, err = ParseTaskStatus("DONE")
	assert.Error(t, err)

	p, err := ParsePriority("urgent")
	require.NoError(t, err)
	assert.Equal(t, "Urgent", p.Label())
}

func TestProjectMembership(t *testing.T) {
	p := Project{ManagerID: "m", Team: []string{"a", "b"}}

	assert.True(t, p.IsManager("m"))
	assert.False(t, p.IsMember("m"))
	assert.True(t, p.IsParticipant("m"))
	assert.True(t, p.IsParticipant("b"))
	assert.False(t, p.IsParticipant("c"))
	assert.False(t, p.IsParticipant(""))
}
