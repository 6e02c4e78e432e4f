package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/khanghh/blogapi/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	mysqlErrDuplicateEntry = 1062
	usernameIndexSuffix    = "user_username"
)

type CreateUserOptions struct {
	Username string
	Name     string
	Email    string
	Password string // empty for users created through an OAuth2 provider
}

// UpdateProfileOptions lists the profile fields to change; nil leaves a field
// untouched.
type UpdateProfileOptions struct {
	Name     *string
	Password *string
}

type UserService struct {
	userRepo UserRepository
}

func mapNotFound(user *model.User, err error) (*model.User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint64) (*model.User, error) {
	return mapNotFound(s.userRepo.FindByID(ctx, userID))
}

// GetUserByIDFresh returns the user as currently stored on the primary
// database, so the email verification state is never stale.
func (s *UserService) GetUserByIDFresh(ctx context.Context, userID uint64) (*model.User, error) {
	return mapNotFound(s.userRepo.FindByIDFresh(ctx, userID))
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return mapNotFound(s.userRepo.FindByEmail(ctx, email))
}

// Authenticate checks a password against the user owning identifier. An
// identifier containing '@' is looked up as an email, anything else as a
// username. Unknown users and wrong passwords are indistinguishable to the
// caller.
func (s *UserService) Authenticate(ctx context.Context, identifier string, password string) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.FindByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.FindByUsername(ctx, identifier)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}
	if user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// duplicateEntryError maps a MySQL duplicate key error to the conflicting
// field using the name of the violated unique index.
func duplicateEntryError(mysqlErr *mysql.MySQLError) error {
	key := strings.TrimSuffix(mysqlErr.Message, "'")
	if strings.HasSuffix(key, usernameIndexSuffix) {
		return ErrUsernameTaken
	}
	return ErrEmailRegistered
}

func (s *UserService) checkUserExist(ctx context.Context, email string, username string) error {
	existing, err := s.userRepo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return err
	}
	for _, user := range existing {
		if user.Username == username {
			return ErrUsernameTaken
		}
	}
	if len(existing) > 0 {
		return ErrEmailRegistered
	}
	return nil
}

func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	if strings.Contains(opts.Username, "@") {
		return nil, ErrInvalidUsername
	}
	if err := s.checkUserExist(ctx, opts.Email, opts.Username); err != nil {
		return nil, err
	}

	user := model.User{
		Username: opts.Username,
		Name:     opts.Name,
		Email:    opts.Email,
	}
	if opts.Password != "" {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(passwordHash)
	}

	var mysqlErr *mysql.MySQLError
	if err := s.userRepo.Create(ctx, &user); errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		return nil, duplicateEntryError(mysqlErr)
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateOAuthUser returns the user owning email, creating a password-less
// account on first login through the OAuth2 provider.
func (s *UserService) GetOrCreateOAuthUser(ctx context.Context, email string, username string, name string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return s.CreateUser(ctx, CreateUserOptions{
		Username: username,
		Name:     name,
		Email:    email,
	})
}

func (s *UserService) MarkEmailVerified(ctx context.Context, email string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsEmailVerified() {
		return nil, ErrEmailAlreadyVerified
	}
	now := time.Now()
	affected, err := s.userRepo.SetEmailVerified(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrEmailAlreadyVerified
	}
	user.EmailVerifiedAt = &now
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, opts UpdateProfileOptions) (*model.User, error) {
	columns := make(map[string]any)
	if opts.Name != nil {
		columns["name"] = *opts.Name
	}
	if opts.Password != nil {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(*opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		columns["password"] = string(passwordHash)
	}
	if len(columns) > 0 {
		err := s.userRepo.UpdateColumns(ctx, userID, columns)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		} else if err != nil {
			return nil, err
		}
	}
	return s.GetUserByIDFresh(ctx, userID)
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}
