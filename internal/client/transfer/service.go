// Package transfer implements the client's content pipeline: a bounded pool
// of download and upload workers, at most one transfer per remote file, with
// progress announced over the event bus. Transfers are independent of folder
// syncs; a refresh never waits for content and vice versa.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/remote"
	"github.com/okatashev/nimbus/internal/client/storage"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/events"
	"github.com/okatashev/nimbus/internal/logging"
)

type taskKey struct {
	account    string
	remotePath string
}

// Service owns the transfer queue. Concurrency is capped by a weighted
// semaphore; queued tasks wait for a slot in FIFO-ish order (semaphore
// fairness), and per-file exclusivity is enforced by the active map.
type Service struct {
	fs      afero.Fs
	root    string
	store   *storage.Manager
	backend Backend
	bus     *events.Bus
	log     logging.Logger
	sem     *semaphore.Weighted

	mu     sync.Mutex
	active map[taskKey]*Task
}

// NewService builds a Service writing downloaded content under root on fs.
func NewService(fs afero.Fs, root string, store *storage.Manager, backend Backend, bus *events.Bus, log logging.Logger, maxConcurrent int64) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		fs:      fs,
		root:    root,
		store:   store,
		backend: backend,
		bus:     bus,
		log:     log.With("component", "transfer"),
		sem:     semaphore.NewWeighted(maxConcurrent),
		active:  make(map[taskKey]*Task),
	}
}

// localPathFor is the managed location of a remote file's content.
func (s *Service) localPathFor(account, remotePath string) string {
	return path.Join(s.root, account, remotePath)
}

// IsTransferInProgress reports whether a task for the file is queued or
// running. View controllers use it to rehydrate per-file progress markers.
func (s *Service) IsTransferInProgress(account, remotePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[taskKey{account: account, remotePath: remotePath}]
	return ok
}

// Download queues a fetch of remotePath's content into the managed sync
// directory. createdBy tags who asked for it. If a transfer for the file is
// already active its task is returned instead; requesting an in-flight file
// twice is not an error.
func (s *Service) Download(ctx context.Context, acct *models.Account, remotePath, createdBy string) (*Task, error) {
	if acct == nil || acct.Name == "" {
		return nil, common.ErrNoAccount
	}
	f, err := s.store.Files.GetByPath(ctx, acct.Name, remotePath)
	if err != nil {
		return nil, err
	}
	if f.IsFolder {
		return nil, fmt.Errorf("%w: %s is a folder", common.ErrorInternal, remotePath)
	}

	t := &Task{
		ID:          uuid.NewString(),
		AccountName: acct.Name,
		RemotePath:  remotePath,
		LocalPath:   s.localPathFor(acct.Name, remotePath),
		Direction:   events.DirectionDownload,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		status:      StatusQueued,
		done:        make(chan struct{}),
	}
	return s.enqueue(ctx, acct, t, func(runCtx context.Context) (bool, remote.ResultCode) {
		return s.runDownload(runCtx, acct, t)
	})
}

// Upload queues a push of localPath's content to remotePath. behavior
// selects what happens to the local original after the server has the
// content; createdBy tags who asked for the transfer.
func (s *Service) Upload(ctx context.Context, acct *models.Account, localPath, remotePath string, behavior Behavior, createdBy string) (*Task, error) {
	if acct == nil || acct.Name == "" {
		return nil, common.ErrNoAccount
	}
	if _, err := s.fs.Stat(localPath); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrLocalFileMissing, localPath)
	}
	if behavior == "" {
		behavior = BehaviorForget
	}

	t := &Task{
		ID:          uuid.NewString(),
		AccountName: acct.Name,
		RemotePath:  remotePath,
		LocalPath:   localPath,
		Direction:   events.DirectionUpload,
		Behavior:    behavior,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		status:      StatusQueued,
		done:        make(chan struct{}),
	}
	return s.enqueue(ctx, acct, t, func(runCtx context.Context) (bool, remote.ResultCode) {
		return s.runUpload(runCtx, acct, t)
	})
}

// enqueue registers the task unless one is already active for the file, then
// starts it on a worker goroutine detached from the caller's context.
func (s *Service) enqueue(ctx context.Context, acct *models.Account, t *Task, run func(context.Context) (bool, remote.ResultCode)) (*Task, error) {
	key := taskKey{account: t.AccountName, remotePath: t.RemotePath}

	s.mu.Lock()
	if existing, ok := s.active[key]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	s.active[key] = t
	s.mu.Unlock()

	s.bus.Publish(ctx, events.Event{
		Kind:      events.TransferAdded,
		Account:   t.AccountName,
		Path:      t.RemotePath,
		Direction: t.Direction,
		TaskID:    t.ID,
	})

	go func() {
		defer cancel()

		if err := s.sem.Acquire(runCtx, 1); err != nil {
			s.conclude(runCtx, t, false, remote.CodeCancelled)
			return
		}
		defer s.sem.Release(1)

		t.setRunning()
		success, code := run(runCtx)
		s.conclude(runCtx, t, success, code)
	}()

	return t, nil
}

// Cancel requests a best-effort stop of the file's active transfer. A task
// that already finished, or never existed, makes this a no-op; cancelling
// twice is equally harmless.
func (s *Service) Cancel(account, remotePath string) {
	s.mu.Lock()
	t, ok := s.active[taskKey{account: account, remotePath: remotePath}]
	s.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
}

// CancelAccount stops every active transfer of the account. Used when the
// account is removed from the device.
func (s *Service) CancelAccount(account string) {
	s.mu.Lock()
	var tasks []*Task
	for key, t := range s.active {
		if key.account == account {
			tasks = append(tasks, t)
		}
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.cancel()
	}
}

// conclude retires the task and announces the outcome. The finished event is
// sticky so a view attached after the fact still learns how the transfer
// ended.
func (s *Service) conclude(ctx context.Context, t *Task, success bool, code remote.ResultCode) {
	s.mu.Lock()
	delete(s.active, taskKey{account: t.AccountName, remotePath: t.RemotePath})
	s.mu.Unlock()

	t.finish(success, code)

	if success {
		s.log.Info(ctx, "transfer finished", "direction", t.Direction, "path", t.RemotePath)
	} else {
		s.log.Warn(ctx, "transfer failed", "direction", t.Direction, "path", t.RemotePath, "code", code)
	}

	s.bus.PublishSticky(ctx, events.Event{
		Kind:      events.TransferFinished,
		Account:   t.AccountName,
		Path:      t.RemotePath,
		Code:      string(code),
		Success:   success,
		Direction: t.Direction,
		TaskID:    t.ID,
	})
}

// runDownload fetches content into a partial file and promotes it only once
// fully written. A failed or cancelled download restores the record's
// previous state: an already-downloaded file never loses that standing to a
// failed refresh of its content.
func (s *Service) runDownload(ctx context.Context, acct *models.Account, t *Task) (bool, remote.ResultCode) {
	prev, err := s.store.Files.GetByPath(ctx, acct.Name, t.RemotePath)
	if err != nil {
		return false, remote.CodeUnknown
	}
	prevState, prevLocal := stateOf(prev)

	if err := s.store.Files.SetDownloadState(ctx, acct.Name, t.RemotePath, models.DownloadStateDownloading, prevLocal); err != nil {
		return false, remote.CodeUnknown
	}
	restore := func() {
		// The task context may already be cancelled; the state rollback
		// must still go through.
		rctx := context.WithoutCancel(ctx)
		if err := s.store.Files.SetDownloadState(rctx, acct.Name, t.RemotePath, prevState, prevLocal); err != nil {
			s.log.Error(rctx, "restoring download state", "path", t.RemotePath, "err", err)
		}
	}

	body, _, res := s.backend.Fetch(ctx, acct, t.RemotePath)
	if !res.IsSuccess() {
		restore()
		return false, res.Code
	}
	defer body.Close()

	part := t.LocalPath + ".part"
	if err := s.writeFile(part, body); err != nil {
		_ = s.fs.Remove(part)
		restore()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return false, remote.CodeCancelled
		}
		s.log.Error(ctx, "writing downloaded content", "path", t.RemotePath, "err", err)
		return false, remote.CodeUnknown
	}
	if err := s.fs.Rename(part, t.LocalPath); err != nil {
		_ = s.fs.Remove(part)
		restore()
		s.log.Error(ctx, "promoting downloaded content", "path", t.RemotePath, "err", err)
		return false, remote.CodeUnknown
	}

	if err := s.store.Files.SetDownloadState(ctx, acct.Name, t.RemotePath, models.DownloadStateDownloaded, t.LocalPath); err != nil {
		return false, remote.CodeUnknown
	}
	return true, res.Code
}

// runUpload pushes the local file and applies the post-upload behavior. The
// local record is only touched on success; a failed upload changes nothing.
func (s *Service) runUpload(ctx context.Context, acct *models.Account, t *Task) (bool, remote.ResultCode) {
	src, err := s.fs.Open(t.LocalPath)
	if err != nil {
		return false, remote.CodeUnknown
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return false, remote.CodeUnknown
	}

	res := s.backend.Store(ctx, acct, t.RemotePath, contextReader{ctx: ctx, r: src}, info.Size())
	if !res.IsSuccess() {
		return false, res.Code
	}

	state := models.DownloadStateNone
	localPath := ""
	switch t.Behavior {
	case BehaviorMove:
		managed := s.localPathFor(acct.Name, t.RemotePath)
		if err := s.moveIntoManaged(t.LocalPath, managed); err != nil {
			s.log.Error(ctx, "moving uploaded original", "path", t.RemotePath, "err", err)
		} else {
			state = models.DownloadStateDownloaded
			localPath = managed
		}
	case BehaviorDelete:
		if err := s.fs.Remove(t.LocalPath); err != nil {
			s.log.Warn(ctx, "removing uploaded original", "local", t.LocalPath, "err", err)
		}
	}

	err = s.store.Files.Upsert(ctx, &models.RemoteFile{
		AccountName:   acct.Name,
		RemotePath:    t.RemotePath,
		ParentPath:    models.ParentOf(t.RemotePath),
		Name:          models.NameOf(t.RemotePath),
		Size:          info.Size(),
		ModifiedAt:    time.Now(),
		DownloadState: state,
		LocalPath:     localPath,
	})
	if err != nil {
		s.log.Error(ctx, "recording uploaded file", "path", t.RemotePath, "err", err)
	}
	return true, res.Code
}

func (s *Service) writeFile(name string, body io.Reader) error {
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}
	dst, err := s.fs.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, body); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *Service) moveIntoManaged(from, to string) error {
	if err := s.fs.MkdirAll(path.Dir(to), 0o755); err != nil {
		return err
	}
	return s.fs.Rename(from, to)
}

func stateOf(f *models.RemoteFile) (models.DownloadState, string) {
	if f.DownloadState == "" {
		return models.DownloadStateNone, f.LocalPath
	}
	return f.DownloadState, f.LocalPath
}

// contextReader aborts an upload mid-stream once its context is cancelled,
// for backends that do not check the context between reads.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
