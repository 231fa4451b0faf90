// Package events implements the in-process publish/subscribe channel between
// the sync/transfer core and any number of view controllers. It replaces the
// sticky-broadcast pattern of mobile platforms with a typed bus: subscribers
// pick the kinds they want, but must still filter by account and path before
// reacting, because delivery is a broadcast, not a directed message.
package events

import (
	"github.com/okatashev/nimbus/internal/client/models"
)

// Kind enumerates every event the core can emit.
type Kind string

const (
	SyncStarted        Kind = "sync-started"
	SyncContentsUpdate Kind = "sync-folder-contents-updated"
	SyncEnded          Kind = "sync-ended"
	NeedsCredentials   Kind = "needs-credentials"
	NeedsTrustDecision Kind = "needs-trust-decision"
	TransferAdded      Kind = "transfer-added"
	TransferFinished   Kind = "transfer-finished"
)

// Direction of a transfer, carried on transfer events.
type Direction string

const (
	DirectionDownload Direction = "download"
	DirectionUpload   Direction = "upload"
)

// Event is one notification. Account is always set; Path is the folder path
// for sync events and the remote file path for transfer events. Code is a
// remote result-code string on terminal events, empty otherwise.
type Event struct {
	Kind    Kind
	Account string
	Path    string

	// Code is the string form of the remote.ResultCode that terminated the
	// operation. Set on SyncEnded and TransferFinished.
	Code string

	// Success is meaningful on TransferFinished only.
	Success bool

	// Direction is set on transfer events.
	Direction Direction

	// Decision is set on NeedsTrustDecision.
	Decision *models.TrustDecision

	// SessionID ties sync events of one refresh attempt together;
	// TaskID does the same for transfer events.
	SessionID string
	TaskID    string
}

// Matches reports whether the event concerns the given account and lies
// under the given folder. Subscribers call this before reacting.
func (e Event) Matches(account, folder string) bool {
	if e.Account != account {
		return false
	}
	return models.UnderFolder(folder, e.Path)
}
