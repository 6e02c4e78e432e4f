package users

import (
	"context"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/khanghh/blogapi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(t *testing.T) *UserService {
	return NewUserService(NewUserRepository(testutil.NewTestDB(t)))
}

func TestCreateUser_AndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	user, err := svc.CreateUser(ctx, CreateUserOptions{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "s3cret", user.Password)
	assert.False(t, user.IsEmailVerified())

	byName, err := svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := svc.Authenticate(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_Conflicts(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	_, err := svc.CreateUser(ctx, CreateUserOptions{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserOptions{Username: "bob", Email: "other@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.CreateUser(ctx, CreateUserOptions{Username: "bobby", Email: "bob@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailRegistered)
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	_, err := svc.GetUserByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrUserNotFound)

	created, err := svc.CreateUser(ctx, CreateUserOptions{Username: "carol", Email: "carol@example.com", Password: "pw"})
	require.NoError(t, err)

	user, err := svc.GetUserByIDFresh(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
}

func TestMarkEmailVerified(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	created, err := svc.CreateUser(ctx, CreateUserOptions{Username: "dave", Email: "dave@example.com", Password: "pw"})
	require.NoError(t, err)

	verified, err := svc.MarkEmailVerified(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified())

	fresh, err := svc.GetUserByIDFresh(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, fresh.IsEmailVerified())

	_, err = svc.MarkEmailVerified(ctx, "dave@example.com")
	assert.ErrorIs(t, err, ErrEmailAlreadyVerified)

	_, err = svc.MarkEmailVerified(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetOrCreateOAuthUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	first, err := svc.GetOrCreateOAuthUser(ctx, "erin@example.com", "erin", "Erin")
	require.NoError(t, err)
	assert.Empty(t, first.Password)

	second, err := svc.GetOrCreateOAuthUser(ctx, "erin@example.com", "erin", "Erin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.Authenticate(ctx, "erin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)
	user, err := svc.CreateUser(ctx, CreateUserOptions{Username: "frank", Name: "Frank", Email: "frank@example.com", Password: "old-pass"})
	require.NoError(t, err)

	name := "Franklin"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileOptions{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Franklin", updated.Name)

	password := "new-pass"
	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileOptions{Password: &password})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "frank", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "frank", "new-pass")
	assert.NoError(t, err)

	unchanged, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Franklin", unchanged.Name)

	_, err = svc.UpdateProfile(ctx, 42, UpdateProfileOptions{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticate_EmailLikeUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	owner, err := svc.CreateUser(ctx, CreateUserOptions{Username: "bob", Email: "bob@example.com", Password: "owner-pass"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserOptions{Username: "bob@example.com", Email: "mallory@example.com", Password: "other-pass"})
	assert.ErrorIs(t, err, ErrInvalidUsername)

	user, err := svc.Authenticate(ctx, "bob@example.com", "owner-pass")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, user.ID)
}

func TestDuplicateEntryError(t *testing.T) {
	tests := []struct {
		message string
		want    error
	}{
		{"Duplicate entry 'bob' for key 'user.idx_user_username'", ErrUsernameTaken},
		{"Duplicate entry 'bob' for key 'blog_user.idx_blog_user_username'", ErrUsernameTaken},
		{"Duplicate entry 'username@example.com' for key 'user.idx_user_email'", ErrEmailRegistered},
	}
	for _, tt := range tests {
		err := duplicateEntryError(&mysql.MySQLError{Number: mysqlErrDuplicateEntry, Message: tt.message})
		assert.ErrorIs(t, err, tt.want, tt.message)
	}
}
