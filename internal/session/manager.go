package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/model"
)

// API is the slice of the finance API the session manager needs.
type API interface {
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, token string) (*model.UserProfile, error)
	Accounts(ctx context.Context, token string) ([]model.Account, error)
}

// Manager pairs the credential store with the finance API login flow.
type Manager struct {
	store *Store
	api   API
}

// NewManager creates a session manager.
func NewManager(store *Store, api API) *Manager {
	return &Manager{store: store, api: api}
}

// Login authenticates, fetches the user's profile and total balance, and
// persists the resulting session.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.Session, error) {
	token, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, common.NewUserError("Login failed", err)
	}

	sess := &model.Session{Token: token, Saved: time.Now().UTC()}
	if err := m.refreshProfile(ctx, sess); err != nil {
		return nil, err
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	slog.Info("Logged in", "user", sess.User.FullName)
	return sess, nil
}

// Logout clears the stored session.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Current returns the stored session, refreshing the profile when it is
// stale. A 401 from the API invalidates the stored session.
func (m *Manager) Current(ctx context.Context) (*model.Session, error) {
	sess, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, common.ErrNotLoggedIn
	}

	if err := m.refreshProfile(ctx, sess); err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			_ = m.store.Clear(ctx)
			return nil, common.ErrNotLoggedIn
		}
		// A transient API failure still leaves the cached profile usable.
		slog.Warn("Profile refresh failed, using cached profile", "error", err)
		return sess, nil
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// profileRetry bounds transient-failure retries on the profile endpoints.
// An expired session is never retried.
var profileRetry = common.RetryOptions{
	MaxAttempts:  2,
	InitialDelay: 200 * time.Millisecond,
}

// refreshProfile pulls /users/me and /accounts, summing account balances
// into the profile's available balance.
func (m *Manager) refreshProfile(ctx context.Context, sess *model.Session) error {
	var user *model.UserProfile
	err := common.WithRetry(ctx, func() error {
		u, err := m.api.Me(ctx, sess.Token)
		if err != nil {
			if errors.Is(err, common.ErrSessionExpired) {
				return &common.RetryableError{Err: err, Retryable: false}
			}
			return err
		}
		user = u
		return nil
	}, profileRetry)
	if err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			return common.ErrSessionExpired
		}
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	var accounts []model.Account
	err = common.WithRetry(ctx, func() error {
		a, err := m.api.Accounts(ctx, sess.Token)
		if err != nil {
			if errors.Is(err, common.ErrSessionExpired) {
				return &common.RetryableError{Err: err, Retryable: false}
			}
			return err
		}
		accounts = a
		return nil
	}, profileRetry)
	if err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			return common.ErrSessionExpired
		}
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}

	var balance float64
	for _, acct := range accounts {
		balance += acct.Balance
	}

	sess.User = *user
	sess.User.Balance = balance
	return nil
}
