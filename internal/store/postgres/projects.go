package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/store"
)

const projectSelect = `
	SELECT
	  p.id,
	  p.name,
	  p.description,
	  p.manager_id,
	  p.status,
	  p.start_date,
	  p.end_date,
	  p.created_at,
	  ARRAY(
	    SELECT pt.user_id FROM project_team pt
	    WHERE pt.project_id = p.id
	    ORDER BY pt.added_at, pt.user_id
	  ) AS team
	FROM projects p
`

func scanProject(row pgx.Row) (*models.Project, error) {
	var (
		p      models.Project
		status string
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.ManagerID,
		&status,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedAt,
		&p.Team,
	); err != nil {
		return nil, translate(err)
	}
	p.Status = models.ProjectStatus(status)
	if p.Team == nil {
		p.Team = []string{}
	}
	return &p, nil
}

// projectScope renders a visibility scope over alias p.
func projectScope(w *where, s policy.ProjectScope) string {
	switch {
	case s.All:
		return "TRUE"
	case s.ManagedBy != "":
		return "p.manager_id = " + w.arg(s.ManagedBy)
	case s.ParticipantOf != "":
		ph := w.arg(s.ParticipantOf)
		return fmt.Sprintf(`(p.manager_id = %[1]s OR EXISTS (
			SELECT 1 FROM project_team pt WHERE pt.project_id = p.id AND pt.user_id = %[1]s))`, ph)
	}
	return "FALSE"
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO projects (id, name, description, manager_id, status, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Name, p.Description, p.ManagerID, string(p.Status), p.StartDate, p.EndDate, p.CreatedAt)
	if err != nil {
		return translate(err)
	}

	for _, uid := range p.Team {
		if _, err := tx.Exec(ctx, `
			INSERT INTO project_team (project_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (project_id, user_id) DO NOTHING
		`, p.ID, uid); err != nil {
			return translate(err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return scanProject(s.pool.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, id))
}

func (s *Store) ListProjects(ctx context.Context, f store.ProjectFilter) ([]models.Project, error) {
	w := &where{}
	w.add(projectScope(w, f.Scope))
	if f.Status != "" {
		w.add("p.status = " + w.arg(string(f.Status)))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		ph := w.arg("%" + likeEscaper.Replace(term) + "%")
		w.add(fmt.Sprintf("(p.name ILIKE %[1]s OR p.description ILIKE %[1]s)", ph))
	}

	q := projectSelect + w.String() + ` ORDER BY ` + projectOrder(f.Order)
	if !f.Unbounded {
		q += ` LIMIT ` + w.arg(store.NormalizeLimit(f.Limit))
	}
	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func projectOrder(o store.ProjectOrder) string {
	switch o {
	case store.OrderName:
		return "lower(p.name), p.created_at DESC"
	case store.OrderStatus:
		return "p.status, p.created_at DESC"
	case store.OrderEndDate:
		return "p.end_date ASC NULLS LAST, p.created_at DESC"
	}
	return "p.created_at DESC"
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET name = $2, description = $3, manager_id = $4, status = $5, start_date = $6, end_date = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.ManagerID, string(p.Status), p.StartDate, p.EndDate)
	if err != nil {
		return translate(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddTeamMember(ctx context.Context, projectID, userID string) error {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO project_team (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, projectID, userID)
	if err != nil {
		return translate(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrAlreadyMember
	}
	return nil
}

// RemoveTeamMember deletes the membership row and unassigns under the
// project row lock that task writes also take.
func (s *Store) RemoveTeamMember(ctx context.Context, projectID, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockProject(ctx, tx, projectID, true); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `
		DELETE FROM project_team
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotMember
	}

	if _, err := tx.Exec(ctx, unassignSQL, projectID, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const unassignSQL = `
	UPDATE tasks t
	SET assigned_to = NULL
	WHERE t.project_id = $1 AND t.assigned_to = $2
	  AND NOT EXISTS (SELECT 1 FROM projects p WHERE p.id = $1 AND p.manager_id = $2)
	  AND NOT EXISTS (SELECT 1 FROM project_team pt WHERE pt.project_id = $1 AND pt.user_id = $2)`

func (s *Store) UnassignTasks(ctx context.Context, projectID, userID string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockProject(ctx, tx, projectID, true); err != nil {
		return 0, err
	}
	ct, err := tx.Exec(ctx, unassignSQL, projectID, userID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), tx.Commit(ctx)
}

// DeleteProject removes tasks and project in one transaction, project row
// locked first like every other membership-dependent write.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockProject(ctx, tx, id, true); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, id); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *Store) CountManagedProjects(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE manager_id = $1`, userID).Scan(&n)
	return n, err
}
