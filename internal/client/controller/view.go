package controller

import (
	"context"
	"sync"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/events"
)

// FolderView mirrors one (account, folder) pair for a user interface. It
// holds no state the core does not: on Attach it rebuilds everything from
// the database, the orchestrator and the sticky events, so a view recreated
// mid-sync or after the fact converges on the same picture as one that
// watched the whole time.
type FolderView struct {
	c       *Controller
	account string
	folder  string

	mu          sync.Mutex
	entries     []models.RemoteFile
	syncing     bool
	lastOutcome string
	decision    *models.TrustDecision

	sub      *events.Subscription
	onChange func()
	stopped  chan struct{}
}

// Snapshot is the immutable state a renderer consumes.
type Snapshot struct {
	Entries     []models.RemoteFile
	Syncing     bool
	LastOutcome string
	// Decision is non-nil while the folder's sync is suspended on an
	// unverified server certificate.
	Decision *models.TrustDecision
}

// NewFolderView creates a detached view. onChange, if non-nil, is invoked
// after every state change; it must not call back into the view.
func (c *Controller) NewFolderView(account, folder string, onChange func()) *FolderView {
	if folder == "" {
		folder = models.RootPath
	}
	return &FolderView{c: c, account: account, folder: folder, onChange: onChange}
}

// Attach subscribes the view and hydrates its state. Sticky terminal events
// are consumed: this view acknowledges them so they are not replayed to the
// next observer of the folder.
func (v *FolderView) Attach(ctx context.Context) error {
	v.sub = v.c.bus.Subscribe(
		events.SyncStarted,
		events.SyncContentsUpdate,
		events.SyncEnded,
		events.NeedsTrustDecision,
		events.TransferAdded,
		events.TransferFinished,
	)
	v.stopped = make(chan struct{})

	if err := v.reload(ctx); err != nil {
		// Leave the view detached: the event loop never started, so Detach
		// must not wait for it.
		v.c.bus.Unsubscribe(v.sub)
		v.sub = nil
		close(v.stopped)
		return err
	}

	v.mu.Lock()
	v.syncing = v.c.syncer.IsSyncing(v.account, v.folder)
	if ev, ok := v.c.bus.Sticky(events.SyncEnded, v.account, v.folder); ok {
		v.lastOutcome = ev.Code
		v.c.bus.ClearSticky(events.SyncEnded, v.account, v.folder)
	}
	if _, ok := v.c.bus.Sticky(events.SyncContentsUpdate, v.account, v.folder); ok {
		v.c.bus.ClearSticky(events.SyncContentsUpdate, v.account, v.folder)
	}
	if ev, ok := v.c.bus.Sticky(events.NeedsTrustDecision, v.account, v.folder); ok {
		v.decision = ev.Decision
	}
	v.mu.Unlock()

	go v.loop(ctx)
	return nil
}

// Detach unsubscribes the view. Safe to call more than once.
func (v *FolderView) Detach() {
	if v.sub == nil {
		return
	}
	v.c.bus.Unsubscribe(v.sub)
	<-v.stopped
	v.sub = nil
}

// Snapshot returns a copy of the current view state.
func (v *FolderView) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries := make([]models.RemoteFile, len(v.entries))
	copy(entries, v.entries)
	return Snapshot{
		Entries:     entries,
		Syncing:     v.syncing,
		LastOutcome: v.lastOutcome,
		Decision:    v.decision,
	}
}

// Refresh requests a sync of the viewed folder.
func (v *FolderView) Refresh(ctx context.Context, acct *models.Account, ignoreCached bool) error {
	_, err := v.c.Refresh(ctx, acct, v.folder, ignoreCached)
	return err
}

func (v *FolderView) loop(ctx context.Context) {
	defer close(v.stopped)
	for ev := range v.sub.C {
		if !ev.Matches(v.account, v.folder) {
			continue
		}
		v.apply(ctx, ev)
		if v.onChange != nil {
			v.onChange()
		}
	}
}

func (v *FolderView) apply(ctx context.Context, ev events.Event) {
	switch ev.Kind {
	case events.SyncStarted:
		v.mu.Lock()
		if ev.Path == v.folder {
			v.syncing = true
		}
		v.mu.Unlock()

	case events.SyncContentsUpdate:
		if err := v.reload(ctx); err != nil {
			v.c.log.Error(ctx, "reloading folder after update", "folder", v.folder, "err", err)
		}
		v.c.bus.ClearSticky(events.SyncContentsUpdate, ev.Account, ev.Path)

	case events.SyncEnded:
		v.mu.Lock()
		if ev.Path == v.folder {
			v.syncing = false
			v.lastOutcome = ev.Code
			v.decision = nil
		}
		v.mu.Unlock()
		v.c.bus.ClearSticky(events.SyncEnded, ev.Account, ev.Path)

	case events.NeedsTrustDecision:
		v.mu.Lock()
		v.decision = ev.Decision
		v.mu.Unlock()

	case events.TransferAdded, events.TransferFinished:
		// Download state of an entry may have changed.
		if err := v.reload(ctx); err != nil {
			v.c.log.Error(ctx, "reloading folder after transfer", "folder", v.folder, "err", err)
		}
		if ev.Kind == events.TransferFinished {
			v.c.bus.ClearSticky(events.TransferFinished, ev.Account, ev.Path)
		}
	}
}

func (v *FolderView) reload(ctx context.Context) error {
	entries, err := v.c.store.Files.ListChildren(ctx, v.account, v.folder)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.entries = entries
	v.mu.Unlock()
	return nil
}
