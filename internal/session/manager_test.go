package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/model"
)

// fakeAPI implements API for tests.
type fakeAPI struct {
	loginErr    error
	meErr       error
	accountsErr error
	token       string
	profile     model.UserProfile
	accounts    []model.Account
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeAPI) Me(_ context.Context, _ string) (*model.UserProfile, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	profile := f.profile
	return &profile, nil
}

func (f *fakeAPI) Accounts(_ context.Context, _ string) ([]model.Account, error) {
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accounts, nil
}

func TestManagerLogin(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	api := &fakeAPI{
		token:   "tok-1",
		profile: model.UserProfile{FullName: "Ada", HourlyRate: 40},
		accounts: []model.Account{
			{ID: 1, Balance: 1000.00},
			{ID: 2, Balance: 250.50},
		},
	}
	manager := NewManager(store, api)

	sess, err := manager.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, "Ada", sess.User.FullName)
	assert.InDelta(t, 1250.50, sess.User.Balance, 0.001, "balance is the sum across accounts")

	// The session must be persisted.
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tok-1", loaded.Token)
}

func TestManagerLoginBadCredentials(t *testing.T) {
	store := createTestStore(t)
	api := &fakeAPI{loginErr: errors.New("LOGIN_BAD_CREDENTIALS")}
	manager := NewManager(store, api)

	_, err := manager.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)

	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))

	loaded, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Nil(t, loaded, "failed login must not persist a session")
}

func TestManagerCurrentNotLoggedIn(t *testing.T) {
	store := createTestStore(t)
	manager := NewManager(store, &fakeAPI{})

	_, err := manager.Current(context.Background())
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestManagerCurrentExpiredSessionIsCleared(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	require.NoError(t, store.Save(ctx, &model.Session{Token: "stale"}))

	api := &fakeAPI{meErr: common.ErrSessionExpired}
	manager := NewManager(store, api)

	_, err := manager.Current(ctx)
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)

	loaded, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Nil(t, loaded, "a 401 must invalidate the stored session")
}

func TestManagerCurrentTransientFailureKeepsCachedProfile(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	require.NoError(t, store.Save(ctx, &model.Session{
		Token: "tok",
		User:  model.UserProfile{FullName: "Cached", Balance: 99},
	}))

	api := &fakeAPI{meErr: errors.New("connection refused")}
	manager := NewManager(store, api)

	sess, err := manager.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cached", sess.User.FullName)
	assert.InDelta(t, 99, sess.User.Balance, 0.001)
}

func TestManagerLogout(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	require.NoError(t, store.Save(ctx, &model.Session{Token: "tok"}))

	manager := NewManager(store, &fakeAPI{})
	require.NoError(t, manager.Logout(ctx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
