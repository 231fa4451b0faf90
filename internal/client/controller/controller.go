// Package controller is the headless seam between the sync/transfer core and
// any user interface. A Controller exposes the user-level operations; a
// FolderView mirrors one folder for display and rebuilds its full state from
// storage and sticky events whenever it attaches, so a recreated view shows
// the truth regardless of what it missed.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/okatashev/nimbus/internal/client/accounts"
	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/remote"
	"github.com/okatashev/nimbus/internal/client/storage"
	"github.com/okatashev/nimbus/internal/client/syncer"
	"github.com/okatashev/nimbus/internal/client/transfer"
	"github.com/okatashev/nimbus/internal/client/trust"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/events"
	"github.com/okatashev/nimbus/internal/logging"
)

type Controller struct {
	store     *storage.Manager
	accounts  *accounts.Store
	syncer    *syncer.Orchestrator
	transfers *transfer.Service
	trust     *trust.Manager
	auth      remote.Authenticator
	bus       *events.Bus
	log       logging.Logger
}

func New(
	store *storage.Manager,
	acctStore *accounts.Store,
	orch *syncer.Orchestrator,
	transfers *transfer.Service,
	tm *trust.Manager,
	auth remote.Authenticator,
	bus *events.Bus,
	log logging.Logger,
) *Controller {
	return &Controller{
		store:     store,
		accounts:  acctStore,
		syncer:    orch,
		transfers: transfers,
		trust:     tm,
		auth:      auth,
		bus:       bus,
		log:       log.With("component", "controller"),
	}
}

// Accounts exposes the account store for login and switching flows.
func (c *Controller) Accounts() *accounts.Store { return c.accounts }

// Bus exposes the event bus so views can subscribe.
func (c *Controller) Bus() *events.Bus { return c.bus }

// Login authenticates against the server and registers (or re-arms) the
// account on this device.
func (c *Controller) Login(ctx context.Context, name, serverURL, username, password string) error {
	token, res := c.auth.Login(ctx, serverURL, username, password)
	if !res.IsSuccess() {
		if res.Err != nil {
			return res.Err
		}
		return common.ErrorUnauthorized
	}
	return c.accounts.Add(ctx, &models.Account{
		Name:      name,
		ServerURL: serverURL,
		Username:  username,
		Token:     token,
		CreatedAt: time.Now(),
	})
}

// Refresh requests a sync of folderPath for the account. The result arrives
// over the event bus.
func (c *Controller) Refresh(ctx context.Context, acct *models.Account, folderPath string, ignoreCached bool) (syncer.Session, error) {
	if acct != nil && accounts.TokenExpired(acct, time.Now()) {
		// Surface the credentials prompt without a round trip.
		c.bus.Publish(ctx, events.Event{
			Kind:    events.NeedsCredentials,
			Account: acct.Name,
			Path:    folderPath,
		})
		return syncer.Session{}, common.ErrorUnauthorized
	}
	return c.syncer.RequestSync(ctx, acct, folderPath, ignoreCached)
}

// Browse returns the locally known direct children of folderPath.
func (c *Controller) Browse(ctx context.Context, account, folderPath string) ([]models.RemoteFile, error) {
	return c.store.Files.ListChildren(ctx, account, folderPath)
}

// Download queues a user-requested content download for the file.
func (c *Controller) Download(ctx context.Context, acct *models.Account, remotePath string) (*transfer.Task, error) {
	return c.transfers.Download(ctx, acct, remotePath, transfer.CreatedByUser)
}

// Upload queues a user-requested content upload with the given post-upload
// behavior.
func (c *Controller) Upload(ctx context.Context, acct *models.Account, localPath, remotePath string, behavior transfer.Behavior) (*transfer.Task, error) {
	return c.transfers.Upload(ctx, acct, localPath, remotePath, behavior, transfer.CreatedByUser)
}

// CancelTransfer requests a best-effort stop of the file's transfer.
func (c *Controller) CancelTransfer(account, remotePath string) {
	c.transfers.Cancel(account, remotePath)
}

// AcceptCertificate resolves a pending trust decision positively: the
// certificate is persisted and the suspended sync retried once. If the save
// fails, the sync is aborted with the untrusted outcome instead.
func (c *Controller) AcceptCertificate(ctx context.Context, decisionID string) error {
	_, err := c.trust.Accept(ctx, decisionID)
	if err != nil {
		if !errors.Is(err, common.ErrDecisionUnknown) {
			c.syncer.OnFailedSavingCertificate(ctx, decisionID)
		}
		return err
	}
	c.syncer.OnSavedCertificate(ctx, decisionID)
	return nil
}

// DeclineCertificate resolves a pending trust decision negatively.
func (c *Controller) DeclineCertificate(ctx context.Context, decisionID string) error {
	_, err := c.trust.Reject(ctx, decisionID)
	if err != nil {
		return err
	}
	c.syncer.OnFailedSavingCertificate(ctx, decisionID)
	return nil
}

// RemoveAccount takes the account off the device: transfers stop, the mirror
// and the account record go away, and the current-account preference is
// cleared if it pointed there.
func (c *Controller) RemoveAccount(ctx context.Context, account string) error {
	c.transfers.CancelAccount(account)
	if err := c.store.RemoveAccountData(ctx, account); err != nil {
		return err
	}
	c.log.Info(ctx, "account removed", "account", account)
	return nil
}
