package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/policy"
)

// Session is the result of a successful register or login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func (s *Service) session(u *models.User) (*Session, error) {
	tok, exp, err := s.issuer.Issue(u)
	if err != nil {
		return nil, errs.Internal(msgServerError, err)
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Register creates a user from the public sign-up form and logs them in.
// The admin role cannot be chosen here.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*Session, error) {
	role := req.Role
	if role == "" {
		role = models.RoleTeamMember
	}
	if err := s.authorize("register", policy.CanAssignRole(models.Principal{}, role)); err != nil {
		return nil, err
	}

	u, err := s.newUser(ctx, strings.TrimSpace(req.Name), req.Email, req.Password, role, req.Department, "")
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, s.fail("get user by email", err, errs.Unauthenticated(msgBadCredentials))
	}
	if !checkPassword(u.PasswordHash, req.Password) {
		s.metrics.AuthFailure("bad_credentials")
		return nil, errs.Unauthenticated(msgBadCredentials)
	}
	return s.session(u)
}

// Logout revokes a locally issued token until it would have expired.
// Tokens from the external identity provider carry no claims and are left
// alone.
func (s *Service) Logout(ctx context.Context, claims *authmw.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.WithError(err).Error("failed to revoke token")
		return errs.Internal(msgServerError, err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, p models.Principal) (*models.User, error) {
	return s.loadUser(ctx, p.ID, errUserNotFound)
}

// UpdateProfile edits the caller's own record. The role is not editable
// here; sending a different one is rejected rather than ignored.
func (s *Service) UpdateProfile(ctx context.Context, p models.Principal, req models.UpdateProfileRequest) (*models.User, error) {
	u, err := s.loadUser(ctx, p.ID, errUserNotFound)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("update profile", policy.CanEditSelf(p, u.ID)); err != nil {
		return nil, err
	}
	if req.Role != nil && *req.Role != u.Role {
		if err := s.authorize("update profile", policy.CanAssignRole(p, *req.Role)); err != nil {
			return nil, err
		}
		return nil, errs.Invalid("Role cannot be changed from the profile")
	}

	if req.Name != nil {
		if u.Name, err = policy.RequireText("Name", *req.Name); err != nil {
			return nil, err
		}
	}
	if req.Email != nil {
		u.Email = normalizeEmail(*req.Email)
	}
	if req.Department != nil {
		u.Department = *req.Department
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.ProfilePicture != nil && *req.ProfilePicture != "" {
		u.ProfilePicture = *req.ProfilePicture
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, s.fail("update user", err, errUserNotFound)
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, p models.Principal, req models.ChangePasswordRequest) error {
	u, err := s.loadUser(ctx, p.ID, errUserNotFound)
	if err != nil {
		return err
	}
	if err := s.authorize("change password", policy.CanEditSelf(p, u.ID)); err != nil {
		return err
	}
	if !checkPassword(u.PasswordHash, req.CurrentPassword) {
		return errs.Invalid("Current password is incorrect")
	}
	if len(req.NewPassword) < 6 {
		return errs.Invalid("Password must be at least 6 characters")
	}

	hash, err := s.hash(req.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.fail("update user", s.store.UpdateUser(ctx, u), errUserNotFound)
}

func (s *Service) ListUsers(ctx context.Context, p models.Principal) ([]models.User, error) {
	if err := s.authorize("list users", policy.CanManageUsers(p)); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, s.fail("list users", err, nil)
	}
	return users, nil
}

// People lists the users offered in project and task forms. Managers need
// it to build teams, so it is open to admins and project managers.
func (s *Service) People(ctx context.Context, p models.Principal) ([]models.User, error) {
	if err := s.authorize("list people", policy.CanCreateProject(p)); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, s.fail("list users", err, nil)
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, p models.Principal, req models.CreateUserRequest) (*models.User, error) {
	if err := s.authorize("create user", policy.CanManageUsers(p)); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.RoleTeamMember
	}
	if err := s.authorize("create user", policy.CanAssignRole(p, role)); err != nil {
		return nil, err
	}
	return s.newUser(ctx, strings.TrimSpace(req.Name), req.Email, req.Password, role, req.Department, req.Bio)
}

func (s *Service) UpdateUser(ctx context.Context, p models.Principal, id string, req models.UpdateUserRequest) (*models.User, error) {
	u, err := s.loadUser(ctx, id, errUserNotFound)
	if err != nil {
		return nil, err
	}
	if err := s.authorize("update user", policy.CanManageUsers(p)); err != nil {
		return nil, err
	}

	if req.Role != nil && *req.Role != u.Role {
		if err := s.authorize("update user", policy.CanAssignRole(p, *req.Role)); err != nil {
			return nil, err
		}
		if err := s.checkDemotion(ctx, u, *req.Role); err != nil {
			return nil, err
		}
		u.Role = *req.Role
	}
	if req.Name != nil {
		if u.Name, err = policy.RequireText("Name", *req.Name); err != nil {
			return nil, err
		}
	}
	if req.Email != nil {
		u.Email = normalizeEmail(*req.Email)
	}
	if req.Department != nil {
		u.Department = *req.Department
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, s.fail("update user", err, errUserNotFound)
	}
	return u, nil
}

// checkDemotion keeps two invariants across a role change: every project
// manager holds a managing role, and at least one admin remains.
func (s *Service) checkDemotion(ctx context.Context, u *models.User, to models.Role) error {
	if u.Role.CanManage() && !to.CanManage() {
		n, err := s.store.CountManagedProjects(ctx, u.ID)
		if err != nil {
			return s.fail("count managed projects", err, nil)
		}
		if n > 0 {
			return errs.Invalidf("User manages %d project(s); reassign them first", n)
		}
	}
	if u.Role == models.RoleAdmin && to != models.RoleAdmin {
		n, err := s.store.CountAdmins(ctx)
		if err != nil {
			return s.fail("count admins", err, nil)
		}
		if n <= 1 {
			return errs.Invalid("Cannot remove the last admin")
		}
	}
	return nil
}

// DeleteUser removes a user who manages no project. The user is first taken
// off every team and every task assignment; comments and task authorship
// keep the id.
func (s *Service) DeleteUser(ctx context.Context, p models.Principal, id string) error {
	u, err := s.loadUser(ctx, id, errUserNotFound)
	if err != nil {
		return err
	}
	if err := s.authorize("delete user", policy.CanDeleteUser(p, u.ID)); err != nil {
		return err
	}

	n, err := s.store.CountManagedProjects(ctx, u.ID)
	if err != nil {
		return s.fail("count managed projects", err, nil)
	}
	if n > 0 {
		return errs.Invalidf("User manages %d project(s); reassign them first", n)
	}

	if err := s.store.DetachUser(ctx, u.ID); err != nil {
		return s.fail("detach user", err, errUserNotFound)
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		return s.fail("delete user", err, errUserNotFound)
	}

	s.mirror("deprovision", u.Email, func() error { return s.directory.Deprovision(ctx, u.Email) })
	s.log.WithFields(logrus.Fields{"user": u.ID, "by": p.ID}).Info("user deleted")
	return nil
}

// SeedAdmin creates the first admin when the store has none.
func (s *Service) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return false, s.fail("count admins", err, nil)
	}
	if n > 0 {
		return false, nil
	}
	if name == "" {
		name = "Administrator"
	}
	if _, err := s.newUser(ctx, name, email, password, models.RoleAdmin, "", ""); err != nil {
		return false, err
	}
	s.log.WithField("email", normalizeEmail(email)).Info("seeded admin account")
	return true, nil
}

func (s *Service) newUser(ctx context.Context, name, email, password string, role models.Role, department, bio string) (*models.User, error) {
	if name == "" {
		return nil, errs.Invalid("Please add a name")
	}
	if len(password) < 6 {
		return nil, errs.Invalid("Password must be at least 6 characters")
	}

	email = normalizeEmail(email)
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, errs.Invalid(msgDuplicateEmail)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		Department:     department,
		Bio:            bio,
		ProfilePicture: models.DefaultProfilePicture,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, s.fail("create user", err, nil)
	}

	s.mirror("provision", u.Email, func() error { return s.directory.Provision(ctx, u, password) })
	return u, nil
}
