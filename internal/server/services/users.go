// Package services contains server-side business logic: account management,
// articles and authentication. Every operation takes the caller's identity
// and consults package authz before touching stored data.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/dbx"
	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/auth"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/config"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophpress/internal/server/storage"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
	"github.com/google/uuid"
)

// userSortFields are the fields GET /users may sort by.
var userSortFields = []string{"createdAt", "updatedAt", "name", "email"}

// generatedPasswordSize is the number of random bytes behind the password of
// accounts created through federated login.
const generatedPasswordSize = 16

// PasswordHasher hashes and verifies stored passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// PictureStorage grants uploads of user pictures.
type PictureStorage interface {
	PresignPictureUpload(ctx context.Context, userID string) (*storage.Upload, error)
}

// CreateUserInput is the body accepted when creating a user.
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,loose_email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"max=128"`
	Picture  string `json:"picture" validate:"omitempty,url"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserInput lists the profile fields a user may change. Nil fields are
// left untouched.
type UpdateUserInput struct {
	Name    *string `json:"name" validate:"omitempty,max=128"`
	Picture *string `json:"picture" validate:"omitempty,url"`
}

// PasswordInput is the body of a password change.
type PasswordInput struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// ServiceProfile is what an external identity provider reports about a user.
type ServiceProfile struct {
	Provider string `json:"provider" validate:"required,max=64"`
	ID       string `json:"id" validate:"required,max=256"`
	Email    string `json:"email" validate:"required,loose_email"`
	Name     string `json:"name" validate:"max=128"`
	Picture  string `json:"picture" validate:"omitempty,url"`
}

// UserService manages accounts.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	pictures    PictureStorage
	logger      logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, pictures PictureStorage, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      auth.NewHasher(cfg.BcryptCost),
		pictures:    pictures,
		logger:      logger.With("module", "users"),
	}
}

// List returns a page of users. Admins only.
func (s *UserService) List(ctx context.Context, caller authz.Caller, q ListQuery) ([]*models.User, error) {
	if err := authz.ListUsers(caller); err != nil {
		return nil, err
	}
	params, err := q.Params(userSortFields...)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).List(ctx, params)
}

// Get returns the user with id. Anyone may read a user.
func (s *UserService) Get(ctx context.Context, caller authz.Caller, id string) (*models.User, error) {
	if err := authz.ReadUser(caller); err != nil {
		return nil, err
	}
	return s.load(ctx, s.repomanager.Users(s.db), id)
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, caller authz.Caller) (*models.User, error) {
	if err := authz.ReadMe(caller); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, s.repomanager.Users(s.db), caller.ID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrUnauthenticated
	}
	return u, err
}

// Create registers a user. The master key is checked by the caller of this
// method; no user role can create accounts.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	u := &models.User{Name: in.Name, Picture: in.Picture, Role: models.RoleUser}
	if in.Role != "" {
		u.Role = models.Role(in.Role)
	}
	u.SetEmail(in.Email)
	u.SetPassword(in.Password)

	created, err := s.create(ctx, s.repomanager.Users(s.db), u)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user created", "user_id", created.ID, "role", created.Role)
	return created, nil
}

// Update changes the name and picture of the target user. The target may be
// "me". Only the user themself or an admin may update.
func (s *UserService) Update(ctx context.Context, caller authz.Caller, id string, in UpdateUserInput) (*models.User, error) {
	id, err := authz.ResolveTarget(caller, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	u, err := s.load(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if err := authz.UpdateUser(caller, u.ID); err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Picture != nil {
		u.Picture = *in.Picture
	}
	// Cleared fields fall back to the defaults derived from the email.
	u.SetEmail(u.Email)

	return s.save(ctx, repo, u)
}

// UpdatePassword sets a new password for the target user, which may be "me".
// Only the user themself may do so; admins get no bypass. All refresh tokens
// of the user are revoked in the same transaction.
func (s *UserService) UpdatePassword(ctx context.Context, caller authz.Caller, id string, in PasswordInput) (*models.User, error) {
	id, err := authz.ResolveTarget(caller, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	u, err := s.load(ctx, s.repomanager.Users(s.db), id)
	if err != nil {
		return nil, err
	}
	if err := authz.UpdatePassword(caller, u.ID); err != nil {
		return nil, err
	}

	u.SetPassword(in.Password)

	var saved *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if saved, err = s.save(ctx, s.repomanager.Users(tx), u); err != nil {
			return err
		}
		if err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, u.ID); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "password changed", "user_id", u.ID)
	return saved, nil
}

// Delete removes a user. Admins only.
func (s *UserService) Delete(ctx context.Context, caller authz.Caller, id string) error {
	if err := authz.DeleteUser(caller); err != nil {
		return err
	}
	id, err := authz.ResolveTarget(caller, id)
	if err != nil {
		return err
	}
	if !validID(id) {
		return common.ErrNotFound
	}
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "user deleted", "user_id", id, "by", caller.ID)
	return nil
}

// UpsertFromService finds the user bound to the external identity, or with
// the same email, and refreshes its binding and profile. Unknown identities
// get a new account with a random password.
func (s *UserService) UpsertFromService(ctx context.Context, p ServiceProfile) (*models.User, error) {
	p.Email = models.NormalizeEmail(p.Email)
	if err := validation.ValidateStruct(&p); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	u, err := repo.FindByServiceOrEmail(ctx, p.Provider, p.ID, p.Email)
	switch {
	case err == nil:
		if u.Services == nil {
			u.Services = map[string]string{}
		}
		u.Services[p.Provider] = p.ID
		if p.Name != "" {
			u.Name = p.Name
		}
		if p.Picture != "" {
			u.Picture = p.Picture
		}
		return s.save(ctx, repo, u)

	case errors.Is(err, common.ErrNotFound):
		password, err := common.MakeRandHexString(generatedPasswordSize)
		if err != nil {
			return nil, common.ErrorInternal
		}
		u = &models.User{
			Name:     p.Name,
			Picture:  p.Picture,
			Role:     models.RoleUser,
			Services: map[string]string{p.Provider: p.ID},
		}
		u.SetEmail(p.Email)
		u.SetPassword(password)
		created, err := s.create(ctx, repo, u)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "user created from service", "user_id", created.ID, "provider", p.Provider)
		return created, nil

	default:
		return nil, err
	}
}

// PresignPicture grants an upload URL for a new picture of the target user
// and points the user's picture at the object to be uploaded.
func (s *UserService) PresignPicture(ctx context.Context, caller authz.Caller, id string) (*storage.Upload, error) {
	id, err := authz.ResolveTarget(caller, id)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	u, err := s.load(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if err := authz.UpdateUser(caller, u.ID); err != nil {
		return nil, err
	}

	upload, err := s.pictures.PresignPictureUpload(ctx, u.ID)
	if err != nil {
		s.logger.Error(ctx, "presign failed", "user_id", u.ID, "error", err)
		return nil, common.ErrorInternal
	}

	u.Picture = upload.PublicURL
	if _, err := s.save(ctx, repo, u); err != nil {
		return nil, err
	}
	return upload, nil
}

// --- helpers below ---

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// load fetches a user by id. Ids that are not uuids cannot exist.
func (s *UserService) load(ctx context.Context, repo users.Repository, id string) (*models.User, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	return repo.GetByID(ctx, id)
}

// hashPending hashes a password set with SetPassword. Users without a
// pending password keep their stored hash.
func (s *UserService) hashPending(u *models.User) error {
	password, ok := u.PendingPassword()
	if !ok {
		return nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.ApplyPasswordHash(hash)
	return nil
}

func (s *UserService) create(ctx context.Context, repo users.Repository, u *models.User) (*models.User, error) {
	if err := s.hashPending(u); err != nil {
		return nil, err
	}
	return repo.Create(ctx, u)
}

func (s *UserService) save(ctx context.Context, repo users.Repository, u *models.User) (*models.User, error) {
	if err := s.hashPending(u); err != nil {
		return nil, err
	}
	return repo.Update(ctx, u)
}
