// Package syncer implements the folder-refresh orchestrator: for any
// (account, folder) pair at most one refresh is in flight, results fan out
// over the event bus, and local records are rewritten with full-replace
// semantics on success.
//
// Per-folder state machine:
//
//	IDLE -> SYNCING -> (CONTENT_UPDATED?) -> IDLE
//	             \-> AWAITING_TRUST_DECISION -> SYNCING (single retry) | IDLE
//
// Failures are never retried by the orchestrator itself; retry is a caller
// action, except for the single automatic retry after a trust decision is
// accepted.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/remote"
	"github.com/okatashev/nimbus/internal/client/storage"
	"github.com/okatashev/nimbus/internal/client/trust"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/events"
	"github.com/okatashev/nimbus/internal/logging"
)

// Session describes one folder-refresh attempt.
type Session struct {
	ID           string
	AccountName  string
	FolderPath   string
	IgnoreCached bool
	StartedAt    time.Time
}

type sessionState int

const (
	stateSyncing sessionState = iota
	stateAwaitingTrust
)

type session struct {
	Session

	acct       *models.Account
	state      sessionState
	retried    bool
	decisionID string
}

type sessionKey struct {
	account string
	folder  string
}

type Orchestrator struct {
	store  *storage.Manager
	remote remote.Remote
	trust  *trust.Manager
	bus    *events.Bus
	log    logging.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

func New(store *storage.Manager, rem remote.Remote, tm *trust.Manager, bus *events.Bus, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		remote:   rem,
		trust:    tm,
		bus:      bus,
		log:      log.With("component", "syncer"),
		sessions: make(map[sessionKey]*session),
	}
}

// RequestSync starts a refresh of folderPath for the account, unless one is
// already in flight, in which case the existing session is returned and no
// duplicate network call is issued. The sync-started event is emitted
// synchronously so a progress indicator can appear before this returns; the
// refresh itself runs on a background goroutine and terminates with a
// sync-ended event in every case.
func (o *Orchestrator) RequestSync(ctx context.Context, acct *models.Account, folderPath string, ignoreCached bool) (Session, error) {
	if acct == nil || acct.Name == "" {
		return Session{}, common.ErrNoAccount
	}
	if folderPath == "" {
		folderPath = models.RootPath
	}

	key := sessionKey{account: acct.Name, folder: folderPath}

	o.mu.Lock()
	if existing, ok := o.sessions[key]; ok {
		o.mu.Unlock()
		return existing.Session, nil
	}

	acctCopy := *acct
	s := &session{
		Session: Session{
			ID:           uuid.NewString(),
			AccountName:  acct.Name,
			FolderPath:   folderPath,
			IgnoreCached: ignoreCached,
			StartedAt:    time.Now(),
		},
		acct:  &acctCopy,
		state: stateSyncing,
	}
	o.sessions[key] = s
	o.mu.Unlock()

	o.bus.Publish(ctx, events.Event{
		Kind:      events.SyncStarted,
		Account:   s.AccountName,
		Path:      s.FolderPath,
		SessionID: s.ID,
	})

	// The refresh outlives the caller's context: a view detaching must not
	// abort a sync other views may be waiting on.
	go o.run(context.WithoutCancel(ctx), s)

	return s.Session, nil
}

// IsSyncing reports whether a session is active for the folder. Used by
// view controllers to rehydrate their progress indicator on attach.
func (o *Orchestrator) IsSyncing(account, folderPath string) bool {
	if folderPath == "" {
		folderPath = models.RootPath
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.sessions[sessionKey{account: account, folder: folderPath}]
	return ok
}

func (o *Orchestrator) run(ctx context.Context, s *session) {
	var cachedETag string
	if !s.IgnoreCached {
		etag, err := o.store.FolderETag(ctx, s.AccountName, s.FolderPath)
		if err != nil {
			o.log.Error(ctx, "reading cached etag", "folder", s.FolderPath, "err", err)
		} else {
			cachedETag = etag
		}
	}

	res := o.remote.ListFolder(ctx, s.acct, s.FolderPath, cachedETag)
	o.conclude(ctx, s, res)
}

func (o *Orchestrator) conclude(ctx context.Context, s *session, res remote.Result) {
	log := o.log.With("account", s.AccountName, "folder", s.FolderPath, "session", s.ID)

	switch {
	case res.IsSuccess():
		err := o.store.ApplyFolderListing(ctx, s.AccountName, s.FolderPath, res.FolderETag, res.Entries)
		if err != nil {
			log.Error(ctx, "storing folder listing", "err", err)
			o.end(ctx, s, remote.CodeUnknown)
			return
		}
		// Content update and termination are separate signals: list views
		// refresh on the first, progress indicators clear on the second.
		o.bus.PublishSticky(ctx, events.Event{
			Kind:      events.SyncContentsUpdate,
			Account:   s.AccountName,
			Path:      s.FolderPath,
			Code:      string(res.Code),
			SessionID: s.ID,
		})
		o.end(ctx, s, res.Code)

	case res.Code == remote.CodeNotModified:
		log.Debug(ctx, "folder unchanged")
		o.end(ctx, s, res.Code)

	case res.Code == remote.CodeUnauthorized:
		log.Warn(ctx, "credentials rejected")
		o.bus.Publish(ctx, events.Event{
			Kind:      events.NeedsCredentials,
			Account:   s.AccountName,
			Path:      s.FolderPath,
			SessionID: s.ID,
		})
		o.end(ctx, s, res.Code)

	case res.Code == remote.CodeUntrustedCert && !s.retried:
		decision := o.trust.NewDecision(s.AccountName, s.FolderPath, res.Chain)

		o.mu.Lock()
		s.state = stateAwaitingTrust
		s.decisionID = decision.ID
		o.mu.Unlock()

		log.Warn(ctx, "server certificate not trusted", "decision", decision.ID)
		o.bus.PublishSticky(ctx, events.Event{
			Kind:      events.NeedsTrustDecision,
			Account:   s.AccountName,
			Path:      s.FolderPath,
			Decision:  decision,
			SessionID: s.ID,
		})
		// The session stays active: further RequestSync calls for this
		// folder are no-ops until the decision arrives.

	default:
		log.Warn(ctx, "sync failed", "code", res.Code, "err", res.Err)
		o.end(ctx, s, res.Code)
	}
}

// end retires the session and emits the terminal event. The terminal event
// is sticky so an observer recreated mid-sync still sees the outcome.
func (o *Orchestrator) end(ctx context.Context, s *session, code remote.ResultCode) {
	o.mu.Lock()
	delete(o.sessions, sessionKey{account: s.AccountName, folder: s.FolderPath})
	o.mu.Unlock()

	o.bus.PublishSticky(ctx, events.Event{
		Kind:      events.SyncEnded,
		Account:   s.AccountName,
		Path:      s.FolderPath,
		Code:      string(code),
		SessionID: s.ID,
	})
}

// OnSavedCertificate resumes a folder suspended on a trust decision after
// the certificate was accepted and persisted: the refresh is retried exactly
// once. Unknown decision IDs are ignored (the session may have been ended
// elsewhere).
func (o *Orchestrator) OnSavedCertificate(ctx context.Context, decisionID string) {
	s := o.takeAwaiting(decisionID, true)
	if s == nil {
		return
	}
	o.bus.ClearSticky(events.NeedsTrustDecision, s.AccountName, s.FolderPath)
	o.log.Info(ctx, "retrying after accepted certificate",
		"account", s.AccountName, "folder", s.FolderPath)
	go o.run(context.WithoutCancel(ctx), s)
}

// OnFailedSavingCertificate aborts the suspended refresh, surfacing the
// distinct untrusted-server outcome. Covers both user rejection and a
// failed save of an accepted certificate.
func (o *Orchestrator) OnFailedSavingCertificate(ctx context.Context, decisionID string) {
	s := o.takeAwaiting(decisionID, false)
	if s == nil {
		return
	}
	o.bus.ClearSticky(events.NeedsTrustDecision, s.AccountName, s.FolderPath)
	o.log.Info(ctx, "aborting after rejected certificate",
		"account", s.AccountName, "folder", s.FolderPath)
	o.end(ctx, s, remote.CodeUntrustedCert)
}

// takeAwaiting finds the session suspended on decisionID. When resume is
// set the session transitions back to SYNCING with its single retry spent.
func (o *Orchestrator) takeAwaiting(decisionID string, resume bool) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sessions {
		if s.state == stateAwaitingTrust && s.decisionID == decisionID {
			if resume {
				s.state = stateSyncing
				s.retried = true
				s.decisionID = ""
			}
			return s
		}
	}
	return nil
}
