// Package accounts implements the AccountStore: the identities this device
// can sync as, which one is current, and credential invalidation. All core
// APIs elsewhere take the account explicitly; the "current" account is only
// a CLI convenience persisted in metadata.
package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okatashev/nimbus/internal/client/models"
	accountsrepo "github.com/okatashev/nimbus/internal/client/repositories/accounts"
	"github.com/okatashev/nimbus/internal/client/repositories/metadata"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/logging"
)

type Store struct {
	repo accountsrepo.Repository
	meta metadata.Repository
	log  logging.Logger
}

func NewStore(repo accountsrepo.Repository, meta metadata.Repository, log logging.Logger) *Store {
	return &Store{repo: repo, meta: meta, log: log.With("component", "accounts")}
}

// Add registers an account after a successful login. The first account added
// becomes the current one.
func (s *Store) Add(ctx context.Context, a *models.Account) error {
	if a == nil || a.Name == "" {
		return fmt.Errorf("%w: empty account name", common.ErrorInternal)
	}
	if err := s.repo.Upsert(ctx, a); err != nil {
		return err
	}

	current, err := s.meta.Get(ctx, common.MetaCurrentAccount)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return s.SetCurrent(ctx, a.Name)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (*models.Account, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *Store) List(ctx context.Context) ([]models.Account, error) {
	return s.repo.List(ctx)
}

// GetCurrent resolves the persisted current-account preference.
// Returns common.ErrNoAccount when none is set.
func (s *Store) GetCurrent(ctx context.Context) (*models.Account, error) {
	name, err := s.meta.Get(ctx, common.MetaCurrentAccount)
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return nil, common.ErrNoAccount
	}
	return s.repo.GetByName(ctx, string(name))
}

// SetCurrent switches the current account; the account must exist.
func (s *Store) SetCurrent(ctx context.Context, name string) error {
	if _, err := s.repo.GetByName(ctx, name); err != nil {
		return err
	}
	return s.meta.Set(ctx, common.MetaCurrentAccount, []byte(name))
}

// Invalidate drops stored credentials for the account, forcing the login
// flow on the next use. Called when the server answers unauthorized.
func (s *Store) Invalidate(ctx context.Context, name string) error {
	s.log.Info(ctx, "invalidating credentials", "account", name)
	return s.repo.ClearToken(ctx, name)
}

// UpdateToken stores a fresh token after credentials recovery.
func (s *Store) UpdateToken(ctx context.Context, name, token string) error {
	a, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	a.Token = token
	return s.repo.Upsert(ctx, a)
}

// TokenExpired probes the stored token without contacting the server. JWT
// tokens are parsed unverified just to read the exp claim; opaque tokens are
// assumed live and left for the server to reject.
func TokenExpired(a *models.Account, now time.Time) bool {
	if !a.HasCredentials() {
		return true
	}
	tok, _, err := jwt.NewParser().ParseUnverified(a.Token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
