// Package mongo implements store.Store on MongoDB. Team changes use
// guarded $addToSet/$pull updates and comments use $push, so no write is a
// read-modify-write in application memory.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
	"kyri56xcaesar/tasktracker/internal/store"
)

type Options struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	projects *mongo.Collection
	tasks    *mongo.Collection
	log      *logrus.Logger
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, opts Options, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
		clientOpts.SetConnectTimeout(opts.Timeout)
		clientOpts.SetServerSelectionTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(opts.Database)
	s := &Store{
		client:   client,
		users:    db.Collection("users"),
		projects: db.Collection("projects"),
		tasks:    db.Collection("tasks"),
		log:      log,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	s.log.Info("ensuring mongo indexes...")

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.projects.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "manager", Value: 1}}},
		{Keys: bson.D{{Key: "team", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("projects index: %w", err)
	}
	if _, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "project", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("tasks index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	}
	return err
}

// projectScope renders a visibility scope as a projects filter.
func projectScope(sc policy.ProjectScope) bson.M {
	switch {
	case sc.All:
		return bson.M{}
	case sc.ManagedBy != "":
		return bson.M{"manager": sc.ManagedBy}
	case sc.ParticipantOf != "":
		return bson.M{"$or": bson.A{
			bson.M{"manager": sc.ParticipantOf},
			bson.M{"team": sc.ParticipantOf},
		}}
	}
	return bson.M{"_id": bson.M{"$exists": false}}
}

// users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	doc := *u
	doc.Email = strings.ToLower(u.Email)
	_, err := s.users.InsertOne(ctx, doc)
	return translate(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"name":            u.Name,
		"email":           strings.ToLower(u.Email),
		"password_hash":   u.PasswordHash,
		"role":            u.Role,
		"department":      u.Department,
		"bio":             u.Bio,
		"profile_picture": u.ProfilePicture,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DetachUser(ctx context.Context, id string) error {
	if _, err := s.projects.UpdateMany(ctx,
		bson.M{"team": id},
		bson.M{"$pull": bson.M{"team": id}},
	); err != nil {
		return err
	}
	_, err := s.tasks.UpdateMany(ctx,
		bson.M{"assigned_to": id},
		bson.M{"$set": bson.M{"assigned_to": ""}},
	)
	return err
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"role": models.RoleAdmin})
	return int(n), err
}
