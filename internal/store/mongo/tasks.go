package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/store"
)

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if err := s.checkAssignable(ctx, t.ProjectID, t.AssignedTo); err != nil {
		return err
	}
	doc := *t
	if doc.Comments == nil {
		doc.Comments = []models.Comment{}
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}

	if err := s.settle(ctx, t.ProjectID, t.ID, t.AssignedTo); err != nil {
		if _, derr := s.tasks.DeleteOne(ctx, bson.M{"_id": t.ID}); derr != nil {
			return derr
		}
		return err
	}
	return nil
}

func (s *Store) checkAssignable(ctx context.Context, projectID, userID string) error {
	ok, err := s.assignable(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return s.missOr(ctx, projectID, store.ErrNotAssignable)
	}
	return s.missOr(ctx, projectID, nil)
}

// settle re-checks an assignment after it was written. If the user left the
// team in between, the assignment is cleared unless someone already changed
// it, and ErrNotAssignable is returned.
func (s *Store) settle(ctx context.Context, projectID, taskID, userID string) error {
	ok, err := s.assignable(ctx, projectID, userID)
	if err != nil || ok {
		return err
	}
	if _, err := s.tasks.UpdateOne(ctx,
		bson.M{"_id": taskID, "assigned_to": userID},
		bson.M{"$set": bson.M{"assigned_to": ""}},
	); err != nil {
		return err
	}
	return store.ErrNotAssignable
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, translate(err)
	}
	if t.Comments == nil {
		t.Comments = []models.Comment{}
	}
	return &t, nil
}

// taskFilter resolves a task scope into a tasks filter. Project based scopes
// need the matching project ids first.
func (s *Store) taskFilter(ctx context.Context, f store.TaskFilter) (bson.M, error) {
	and := bson.A{}

	if !f.Scope.All {
		ids, err := s.projects.Distinct(ctx, "_id", projectScope(f.Scope.Projects))
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []any{}
		}
		scope := bson.A{bson.M{"project": bson.M{"$in": ids}}}
		if f.Scope.AssignedTo != "" {
			scope = append(scope, bson.M{"assigned_to": f.Scope.AssignedTo})
		}
		and = append(and, bson.M{"$or": scope})
	}
	if f.ProjectID != "" {
		and = append(and, bson.M{"project": f.ProjectID})
	}
	if f.Status != "" {
		and = append(and, bson.M{"status": f.Status})
	}
	if f.Priority != "" {
		and = append(and, bson.M{"priority": f.Priority})
	}
	if f.AssignedTo != "" {
		and = append(and, bson.M{"assigned_to": f.AssignedTo})
	}

	if len(and) == 0 {
		return bson.M{}, nil
	}
	return bson.M{"$and": and}, nil
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	filter, err := s.taskFilter(ctx, f)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetProjection(bson.M{"comments": 0}).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	if !f.Unbounded {
		opts.SetLimit(int64(store.NormalizeLimit(f.Limit)))
	}

	cur, err := s.tasks.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	var cur models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": t.ID},
		options.FindOne().SetProjection(bson.M{"project": 1, "assigned_to": 1}),
	).Decode(&cur); err != nil {
		return translate(err)
	}
	reassign := t.AssignedTo != "" && t.AssignedTo != cur.AssignedTo
	if reassign {
		if err := s.checkAssignable(ctx, cur.ProjectID, t.AssignedTo); err != nil {
			return err
		}
	}

	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": t.ID}, bson.M{"$set": bson.M{
		"title":           t.Title,
		"description":     t.Description,
		"assigned_to":     t.AssignedTo,
		"status":          t.Status,
		"priority":        t.Priority,
		"due_date":        t.DueDate,
		"estimated_hours": t.EstimatedHours,
		"actual_hours":    t.ActualHours,
		"updated_at":      t.UpdatedAt,
		"completed_at":    t.CompletedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	if reassign {
		return s.settle(ctx, cur.ProjectID, t.ID, t.AssignedTo)
	}
	return nil
}

func (s *Store) AddComment(ctx context.Context, taskID string, c models.Comment) error {
	res, err := s.tasks.UpdateOne(ctx,
		bson.M{"_id": taskID},
		bson.M{"$push": bson.M{"comments": c}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
