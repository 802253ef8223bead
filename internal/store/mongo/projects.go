package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/store"
)

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	doc := *p
	if doc.Team == nil {
		doc.Team = []string{}
	}
	_, err := s.projects.InsertOne(ctx, doc)
	return translate(err)
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	if p.Team == nil {
		p.Team = []string{}
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context, f store.ProjectFilter) ([]models.Project, error) {
	and := bson.A{projectScope(f.Scope)}
	if f.Status != "" {
		and = append(and, bson.M{"status": f.Status})
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
		and = append(and, bson.M{"$or": bson.A{bson.M{"name": re}, bson.M{"description": re}}})
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"$and": and}}}}
	opts := options.Aggregate()
	switch f.Order {
	case store.OrderName:
		opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "name", Value: 1}, {Key: "created_at", Value: -1}}}})
	case store.OrderStatus:
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}}})
	case store.OrderEndDate:
		// projects without an end date go last
		pipeline = append(pipeline,
			bson.D{{Key: "$addFields", Value: bson.M{"no_end": bson.M{"$cond": bson.A{bson.M{"$ifNull": bson.A{"$end_date", false}}, 0, 1}}}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: "no_end", Value: 1}, {Key: "end_date", Value: 1}, {Key: "created_at", Value: -1}}}},
			bson.D{{Key: "$project", Value: bson.M{"no_end": 0}}},
		)
	default:
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}})
	}
	if !f.Unbounded {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: store.NormalizeLimit(f.Limit)}})
	}

	cur, err := s.projects.Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Project, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Team == nil {
			out[i].Team = []string{}
		}
	}
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	res, err := s.projects.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":        p.Name,
		"description": p.Description,
		"manager":     p.ManagerID,
		"status":      p.Status,
		"start_date":  p.StartDate,
		"end_date":    p.EndDate,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddTeamMember only matches when the user is absent, so concurrent adds
// of the same user modify the document at most once.
func (s *Store) AddTeamMember(ctx context.Context, projectID, userID string) error {
	res, err := s.projects.UpdateOne(ctx,
		bson.M{"_id": projectID, "team": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"team": userID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return s.missOr(ctx, projectID, store.ErrAlreadyMember)
}

// RemoveTeamMember pulls the user and then unassigns them. Task writes
// re-check membership after they land, so an assignment racing with the
// pull is cleared by one side or the other.
func (s *Store) RemoveTeamMember(ctx context.Context, projectID, userID string) error {
	var before models.Project
	err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"_id": projectID, "team": userID},
		bson.M{"$pull": bson.M{"team": userID}},
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.missOr(ctx, projectID, store.ErrNotMember)
	}
	if err != nil {
		return err
	}
	if before.ManagerID == userID {
		return nil
	}
	_, err = s.unassign(ctx, projectID, userID)
	return err
}

func (s *Store) UnassignTasks(ctx context.Context, projectID, userID string) (int, error) {
	if err := s.missOr(ctx, projectID, nil); err != nil {
		return 0, err
	}
	ok, err := s.assignable(ctx, projectID, userID)
	if err != nil || ok {
		return 0, err
	}
	return s.unassign(ctx, projectID, userID)
}

func (s *Store) unassign(ctx context.Context, projectID, userID string) (int, error) {
	res, err := s.tasks.UpdateMany(ctx,
		bson.M{"project": projectID, "assigned_to": userID},
		bson.M{"$set": bson.M{"assigned_to": ""}},
	)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

// assignable reports whether userID manages or belongs to the project.
func (s *Store) assignable(ctx context.Context, projectID, userID string) (bool, error) {
	if userID == "" {
		return true, nil
	}
	n, err := s.projects.CountDocuments(ctx, bson.M{
		"_id": projectID,
		"$or": bson.A{bson.M{"manager": userID}, bson.M{"team": userID}},
	})
	return n > 0, err
}

// missOr tells a missing project apart from a guard that did not match.
func (s *Store) missOr(ctx context.Context, projectID string, guardErr error) error {
	n, err := s.projects.CountDocuments(ctx, bson.M{"_id": projectID})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return guardErr
}

// DeleteProject removes the tasks first and the project last. If the
// second step fails the project is still there and the call can be retried;
// tasks are never left without a project.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	n, err := s.projects.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if _, err := s.tasks.DeleteMany(ctx, bson.M{"project": id}); err != nil {
		return err
	}
	res, err := s.projects.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountManagedProjects(ctx context.Context, userID string) (int, error) {
	n, err := s.projects.CountDocuments(ctx, bson.M{"manager": userID})
	return int(n), err
}
