// Package tracker runs every user facing operation. Each method follows the
// same order: load what the request names, ask policy, check invariants,
// then write. Both the JSON API and the HTML pages call into it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/metrics"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/store"
)

const (
	msgServerError    = "Server Error"
	msgDuplicateEmail = "User already exists with that email"
	msgBadCredentials = "Invalid credentials"
)

var (
	errProjectNotFound = errs.NotFound("Project not found")
	errTaskNotFound    = errs.NotFound("Task not found")
	errUserNotFound    = errs.NotFound("User not found")
)

// Deps are the collaborators of a Service. Store and Issuer are required.
type Deps struct {
	Store       store.Store
	Issuer      *authmw.Issuer
	Revocations authmw.Revocations
	Directory   authmw.Directory
	Metrics     *metrics.Metrics
	Log         *logrus.Logger

	Now        func() time.Time
	BcryptCost int
}

type Service struct {
	store     store.Store
	issuer    *authmw.Issuer
	revoked   authmw.Revocations
	directory authmw.Directory
	metrics   *metrics.Metrics
	log       *logrus.Logger
	now       func() time.Time
	cost      int
}

func New(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		issuer:    d.Issuer,
		revoked:   d.Revocations,
		directory: d.Directory,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       d.Now,
		cost:      d.BcryptCost,
	}
	if s.revoked == nil {
		s.revoked = authmw.NopRevocations{}
	}
	if s.directory == nil {
		s.directory = authmw.NopDirectory{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	return s
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// fail translates a store error. notFound is returned for ErrNotFound; any
// unrecognised error is logged and hidden behind a generic message.
func (s *Service) fail(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, store.ErrDuplicate):
		return errs.Invalid(msgDuplicateEmail)
	case errors.Is(err, store.ErrAlreadyMember):
		return errs.Invalid("User is already a member of this project")
	case errors.Is(err, store.ErrNotMember):
		return errs.Invalid("User is not a member of this project")
	case errors.Is(err, store.ErrNotAssignable):
		// team changed between the policy check and the write
		return errs.Invalid("Assigned user must be the project manager or a team member")
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	s.metrics.StoreError(op)
	s.log.WithError(err).WithField("op", op).Error("store operation failed")
	return errs.Internal(msgServerError, fmt.Errorf("%s: %w", op, err))
}

// authorize records denials so they show up next to the HTTP metrics.
func (s *Service) authorize(action string, err error) error {
	if err != nil && errs.IsKind(err, errs.KindForbidden) {
		s.metrics.Denied(action)
	}
	return err
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", errs.Internal(msgServerError, fmt.Errorf("hash password: %w", err))
	}
	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) loadProject(ctx context.Context, id string) (*models.Project, error) {
	proj, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, s.fail("get project", err, errProjectNotFound)
	}
	return proj, nil
}

func (s *Service) loadTask(ctx context.Context, id string) (*models.Task, *models.Project, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, s.fail("get task", err, errTaskNotFound)
	}
	proj, err := s.store.GetProject(ctx, t.ProjectID)
	if err != nil {
		// a task outlived its project; treat it as gone
		return nil, nil, s.fail("get project", err, errTaskNotFound)
	}
	return t, proj, nil
}

func (s *Service) loadUser(ctx context.Context, id string, notFound error) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, s.fail("get user", err, notFound)
	}
	return u, nil
}

// mirror pushes a change to the external directory. Failures are logged only.
func (s *Service) mirror(what, email string, fn func() error) {
	if err := fn(); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"op": what, "email": email}).Warn("directory mirror failed")
	}
}

// TokenTTL is the lifetime of issued tokens, used for cookie max-age.
func (s *Service) TokenTTL() time.Duration {
	return s.issuer.TTL()
}
