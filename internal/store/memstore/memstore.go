// Package memstore is an in-process store.Store used for development
// profiles and tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	projects map[string]models.Project
	tasks    map[string]models.Task
	// insertion counter keeps ordering stable for equal timestamps
	seq   int64
	order map[string]int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		projects: make(map[string]models.Project),
		tasks:    make(map[string]models.Task),
		order:    make(map[string]int64),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

// newer sorts by creation time descending, then by insertion order.
func (s *Store) newer(aID string, a time.Time, bID string, b time.Time) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return s.order[aID] > s.order[bID]
}

// users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	s.users[u.ID] = *u
	s.stamp(u.ID)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) DetachUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pid, p := range s.projects {
		if i := slices.Index(p.Team, id); i >= 0 {
			p.Team = slices.Delete(slices.Clone(p.Team), i, i+1)
			s.projects[pid] = p
		}
	}
	for tid, t := range s.tasks {
		if t.AssignedTo == id {
			t.AssignedTo = ""
			s.tasks[tid] = t
		}
	}
	return nil
}

func (s *Store) CountAdmins(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, u := range s.users {
		if u.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

// projects

func (s *Store) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.Team = slices.Clone(p.Team)
	s.projects[p.ID] = cp
	s.stamp(p.ID)
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Team = slices.Clone(p.Team)
	return &p, nil
}

func (s *Store) ListProjects(_ context.Context, f store.ProjectFilter) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Project, 0)
	for _, p := range s.projects {
		if !f.Scope.Matches(&p) {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		p.Team = slices.Clone(p.Team)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareProjects(&out[i], &out[j], f.Order); c != 0 {
			return c < 0
		}
		return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	if limit := store.NormalizeLimit(f.Limit); !f.Unbounded && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// compareProjects orders by the requested key only; 0 leaves the tie to the
// caller. Projects without an end date sort last.
func compareProjects(a, b *models.Project, order store.ProjectOrder) int {
	switch order {
	case store.OrderName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case store.OrderStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case store.OrderEndDate:
		switch {
		case a.EndDate == nil && b.EndDate == nil:
			return 0
		case a.EndDate == nil:
			return 1
		case b.EndDate == nil:
			return -1
		}
		return a.EndDate.Compare(*b.EndDate)
	}
	return 0
}

func (s *Store) UpdateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *p
	updated.Team = cur.Team
	s.projects[p.ID] = updated
	return nil
}

func (s *Store) AddTeamMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return store.ErrNotFound
	}
	if slices.Contains(p.Team, userID) {
		return store.ErrAlreadyMember
	}
	p.Team = append(slices.Clone(p.Team), userID)
	s.projects[projectID] = p
	return nil
}

func (s *Store) RemoveTeamMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return store.ErrNotFound
	}
	i := slices.Index(p.Team, userID)
	if i < 0 {
		return store.ErrNotMember
	}
	p.Team = slices.Delete(slices.Clone(p.Team), i, i+1)
	s.projects[projectID] = p
	s.unassign(p, userID)
	return nil
}

func (s *Store) UnassignTasks(_ context.Context, projectID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return s.unassign(p, userID), nil
}

// unassign must run under the write lock.
func (s *Store) unassign(p models.Project, userID string) int {
	if assignable(p, userID) {
		return 0
	}
	n := 0
	for tid, t := range s.tasks {
		if t.ProjectID == p.ID && t.AssignedTo == userID {
			t.AssignedTo = ""
			s.tasks[tid] = t
			n++
		}
	}
	return n
}

func assignable(p models.Project, userID string) bool {
	return p.ManagerID == userID || slices.Contains(p.Team, userID)
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return store.ErrNotFound
	}
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
		}
	}
	delete(s.projects, id)
	return nil
}

func (s *Store) CountManagedProjects(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.projects {
		if p.ManagerID == userID {
			n++
		}
	}
	return n, nil
}

// tasks

func (s *Store) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[t.ProjectID]
	if !ok {
		return store.ErrNotFound
	}
	if t.AssignedTo != "" && !assignable(p, t.AssignedTo) {
		return store.ErrNotAssignable
	}
	cp := *t
	cp.Comments = slices.Clone(t.Comments)
	s.tasks[t.ID] = cp
	s.stamp(t.ID)
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Comments = slices.Clone(t.Comments)
	if t.Comments == nil {
		t.Comments = []models.Comment{}
	}
	return &t, nil
}

func (s *Store) ListTasks(_ context.Context, f store.TaskFilter) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0)
	for _, t := range s.tasks {
		var proj *models.Project
		if p, ok := s.projects[t.ProjectID]; ok {
			proj = &p
		}
		if !f.Scope.Matches(proj, &t) {
			continue
		}
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
			continue
		}
		t.Comments = nil
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	if limit := store.NormalizeLimit(f.Limit); !f.Unbounded && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[t.ID]
	if !ok {
		return store.ErrNotFound
	}
	if t.AssignedTo != "" && t.AssignedTo != cur.AssignedTo && !assignable(s.projects[cur.ProjectID], t.AssignedTo) {
		return store.ErrNotAssignable
	}
	updated := *t
	updated.ProjectID = cur.ProjectID
	updated.Comments = cur.Comments
	s.tasks[t.ID] = updated
	return nil
}

func (s *Store) AddComment(_ context.Context, taskID string, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	t.Comments = append(slices.Clone(t.Comments), c)
	s.tasks[taskID] = t
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
