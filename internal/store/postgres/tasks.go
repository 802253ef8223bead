package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/store"
)

const taskColumns = `
	t.id, t.project_id, t.title, t.description, t.assigned_to, t.created_by,
	t.status, t.priority, t.due_date, t.estimated_hours, t.actual_hours,
	t.created_at, t.updated_at, t.completed_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		t                models.Task
		assignee         *string
		status, priority string
	)
	if err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.Description,
		&assignee,
		&t.CreatedBy,
		&status,
		&priority,
		&t.DueDate,
		&t.EstimatedHours,
		&t.ActualHours,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	); err != nil {
		return nil, translate(err)
	}
	t.AssignedTo = deref(assignee)
	t.Status = models.TaskStatus(status)
	t.Priority = models.Priority(priority)
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	manager, err := lockProject(ctx, tx, t.ProjectID, false)
	if err != nil {
		return err
	}
	if err := checkAssignable(ctx, tx, t.ProjectID, manager, t.AssignedTo); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tasks (
		  id, project_id, title, description, assigned_to, created_by, status, priority,
		  due_date, estimated_hours, actual_hours, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, t.ID, t.ProjectID, t.Title, t.Description, nullable(t.AssignedTo), t.CreatedBy,
		string(t.Status), string(t.Priority), t.DueDate, t.EstimatedHours, t.ActualHours,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		return translate(err)
	}
	return tx.Commit(ctx)
}

// lockProject locks the project row and returns its manager. Every write
// that depends on team membership takes this lock before any task row.
func lockProject(ctx context.Context, tx pgx.Tx, projectID string, exclusive bool) (string, error) {
	mode := "FOR SHARE"
	if exclusive {
		mode = "FOR UPDATE"
	}
	var manager string
	err := tx.QueryRow(ctx, `SELECT manager_id FROM projects WHERE id = $1 `+mode, projectID).Scan(&manager)
	return manager, translate(err)
}

func checkAssignable(ctx context.Context, tx pgx.Tx, projectID, manager, userID string) error {
	if userID == "" || userID == manager {
		return nil
	}
	var member bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM project_team WHERE project_id = $1 AND user_id = $2)
	`, projectID, userID).Scan(&member); err != nil {
		return err
	}
	if !member {
		return store.ErrNotAssignable
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, body, created_at
		FROM task_comments
		WHERE task_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t.Comments = make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		t.Comments = append(t.Comments, c)
	}
	return t, rows.Err()
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	w := &where{}

	if !f.Scope.All {
		scope := fmt.Sprintf("t.project_id IN (SELECT p.id FROM projects p WHERE %s)", projectScope(w, f.Scope.Projects))
		if f.Scope.AssignedTo != "" {
			scope = fmt.Sprintf("(%s OR t.assigned_to = %s)", scope, w.arg(f.Scope.AssignedTo))
		}
		w.add(scope)
	}
	if f.ProjectID != "" {
		w.add("t.project_id = " + w.arg(f.ProjectID))
	}
	if f.Status != "" {
		w.add("t.status = " + w.arg(string(f.Status)))
	}
	if f.Priority != "" {
		w.add("t.priority = " + w.arg(string(f.Priority)))
	}
	if f.AssignedTo != "" {
		w.add("t.assigned_to = " + w.arg(f.AssignedTo))
	}
	q := `SELECT ` + taskColumns + ` FROM tasks t ` + w.String() + ` ORDER BY t.created_at DESC`
	if !f.Unbounded {
		q += ` LIMIT ` + w.arg(store.NormalizeLimit(f.Limit))
	}
	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateTask holds the project lock while it re-reads and writes the task,
// so it serialises with RemoveTeamMember.
func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	var projectID string
	if err := s.pool.QueryRow(ctx, `SELECT project_id FROM tasks WHERE id = $1`, t.ID).Scan(&projectID); err != nil {
		return translate(err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	manager, err := lockProject(ctx, tx, projectID, false)
	if err != nil {
		return err
	}
	var current *string
	if err := tx.QueryRow(ctx,
		`SELECT assigned_to FROM tasks WHERE id = $1 FOR UPDATE`, t.ID).Scan(&current); err != nil {
		return translate(err)
	}
	if t.AssignedTo != deref(current) {
		if err := checkAssignable(ctx, tx, projectID, manager, t.AssignedTo); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, assigned_to = $4, status = $5, priority = $6,
		    due_date = $7, estimated_hours = $8, actual_hours = $9, updated_at = $10, completed_at = $11
		WHERE id = $1
	`, t.ID, t.Title, t.Description, nullable(t.AssignedTo), string(t.Status), string(t.Priority),
		t.DueDate, t.EstimatedHours, t.ActualHours, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		return translate(err)
	}
	return tx.Commit(ctx)
}

func (s *Store) AddComment(ctx context.Context, taskID string, c models.Comment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_comments (id, task_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, taskID, c.UserID, c.Text, c.CreatedAt)
	return translate(err)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
