// Package cli is the interactive shell over the sync client: a small REPL
// that drives the controller and echoes bus events as they arrive.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"

	"github.com/okatashev/nimbus/internal/client/accounts"
	"github.com/okatashev/nimbus/internal/client/config"
	"github.com/okatashev/nimbus/internal/client/controller"
	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/remote"
	"github.com/okatashev/nimbus/internal/client/storage"
	"github.com/okatashev/nimbus/internal/client/syncer"
	"github.com/okatashev/nimbus/internal/client/transfer"
	"github.com/okatashev/nimbus/internal/client/trust"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/events"
	"github.com/okatashev/nimbus/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	config *config.Config
	ctrl   *controller.Controller
	store  *storage.Manager
	bus    *events.Bus
	log    logging.Logger
	reader *bufio.Reader

	mu       sync.Mutex
	current  *models.Account
	decision *models.TrustDecision
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	store, err := storage.Open(ctx, c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	bus := events.NewBus(log)
	acctStore := accounts.NewStore(store.Accounts, store.Metadata, log)

	tm, err := trust.NewManager(ctx, store.Certs, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading trusted certificates: %w", err)
	}

	httpClient := remote.NewHTTPClient(tm, c.RequestTimeout, log)
	orch := syncer.New(store, httpClient, tm, bus, log)

	backend, err := buildBackend(ctx, c, httpClient)
	if err != nil {
		store.Close()
		return nil, err
	}
	transfers := transfer.NewService(afero.NewOsFs(), c.DataDir, store, backend, bus, log,
		int64(c.MaxConcurrentTransfers))

	ctrl := controller.New(store, acctStore, orch, transfers, tm, httpClient, bus, log)

	return &App{
		config: c,
		ctrl:   ctrl,
		store:  store,
		bus:    bus,
		log:    log.With("component", "cli"),
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func buildBackend(ctx context.Context, c *config.Config, httpClient *remote.HTTPClient) (transfer.Backend, error) {
	switch c.TransferBackend {
	case "", config.BackendHTTP:
		return transfer.NewHTTPBackend(httpClient), nil
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		return transfer.NewS3Backend(s3.NewFromConfig(awsCfg), c.S3Bucket), nil
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownBackend, c.TransferBackend)
	}
}

// Run starts the event echo and the command loop, then tears down.
func (a *App) Run(ctx context.Context) {
	sub := a.bus.Subscribe(
		events.SyncEnded,
		events.NeedsCredentials,
		events.NeedsTrustDecision,
		events.TransferFinished,
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.echoEvents(ctx, sub)
	}()

	a.loadCurrent(ctx)
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))

	a.bus.Unsubscribe(sub)
	<-done
	if err := a.store.Close(); err != nil {
		a.log.Error(ctx, "closing database", "err", err)
	}
}

// echoEvents prints core events as they happen, so the user sees outcomes
// of background syncs and transfers without polling.
func (a *App) echoEvents(ctx context.Context, sub *events.Subscription) {
	for ev := range sub.C {
		switch ev.Kind {
		case events.SyncEnded:
			printlnFn(fmt.Sprintf("sync of %s finished: %s", ev.Path, ev.Code))
			a.bus.ClearSticky(events.SyncEnded, ev.Account, ev.Path)

		case events.NeedsCredentials:
			printlnFn(fmt.Sprintf("credentials for %s were rejected; run 'login' to re-authenticate", ev.Account))

		case events.NeedsTrustDecision:
			a.mu.Lock()
			a.decision = ev.Decision
			a.mu.Unlock()
			if ev.Decision != nil {
				printlnFn(fmt.Sprintf("server certificate for %s is not trusted (sha256 %s); run 'trust' to decide",
					ev.Account, ev.Decision.Fingerprint()))
			}

		case events.TransferFinished:
			verb := "download"
			if ev.Direction == events.DirectionUpload {
				verb = "upload"
			}
			if ev.Success {
				printlnFn(fmt.Sprintf("%s of %s finished", verb, ev.Path))
			} else {
				printlnFn(fmt.Sprintf("%s of %s failed: %s", verb, ev.Path, ev.Code))
			}
			a.bus.ClearSticky(events.TransferFinished, ev.Account, ev.Path)
		}
	}
}

func (a *App) loadCurrent(ctx context.Context) {
	acct, err := a.ctrl.Accounts().GetCurrent(ctx)
	if err != nil {
		return
	}
	a.mu.Lock()
	a.current = acct
	a.mu.Unlock()
}

func (a *App) account() *models.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *App) hasAccount() bool {
	return a.account() != nil
}

func (a *App) status() string {
	acct := a.account()
	if acct == nil {
		return "(no account)"
	}
	return fmt.Sprintf("(%s)", acct.Name)
}
