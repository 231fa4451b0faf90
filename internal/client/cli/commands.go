package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/transfer"
	"github.com/okatashev/nimbus/internal/common"
)

// Login authenticates against a server and registers the account locally.
// The first account added becomes the current one automatically.
func (a *App) Login(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Account name (e.g. alice@cloud.example.com)", os.Stdout)
	if err != nil {
		return err
	}

	serverPrompt := "Server URL"
	if a.config.ServerURL != "" {
		serverPrompt = fmt.Sprintf("Server URL (empty for %s)", a.config.ServerURL)
	}
	serverURL, err := GetSimpleText(a.reader, serverPrompt, os.Stdout)
	if err != nil {
		return err
	}
	if serverURL == "" {
		serverURL = a.config.ServerURL
	}

	username, err := GetSimpleText(a.reader, "Username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword("Password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.ctrl.Login(ctx, name, serverURL, username, string(password)); err != nil {
		return err
	}
	printlnFn("Logged in as", name)

	acct, err := a.ctrl.Accounts().Get(ctx, name)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.current = acct
	a.mu.Unlock()
	return nil
}

func (a *App) ListAccounts(ctx context.Context) error {
	list, err := a.ctrl.Accounts().List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No accounts on this device; run 'login' to add one")
		return nil
	}
	current := a.account()
	for _, acct := range list {
		marker := " "
		if current != nil && acct.Name == current.Name {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%s %s (%s)", marker, acct.Name, acct.ServerURL))
	}
	return nil
}

func (a *App) Use(ctx context.Context, name string) error {
	if err := a.ctrl.Accounts().SetCurrent(ctx, name); err != nil {
		return err
	}
	acct, err := a.ctrl.Accounts().Get(ctx, name)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.current = acct
	a.mu.Unlock()
	return nil
}

// List prints the locally known contents of a folder. What is shown is the
// mirror, not the server; run 'sync' first for a fresh view.
func (a *App) List(ctx context.Context, folder string) error {
	acct := a.account()
	if acct == nil {
		return common.ErrNoAccount
	}
	entries, err := a.ctrl.Browse(ctx, acct.Name, folder)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printlnFn("(empty or never synced)")
		return nil
	}
	for _, e := range entries {
		switch {
		case e.IsFolder:
			printlnFn(fmt.Sprintf("d  %s/", e.Name))
		case e.Downloaded():
			printlnFn(fmt.Sprintf("*  %s  %d", e.Name, e.Size))
		case e.DownloadState == models.DownloadStateDownloading:
			printlnFn(fmt.Sprintf("~  %s  %d", e.Name, e.Size))
		default:
			printlnFn(fmt.Sprintf("   %s  %d", e.Name, e.Size))
		}
	}
	return nil
}

func (a *App) Sync(ctx context.Context, folder string) error {
	acct := a.account()
	if acct == nil {
		return common.ErrNoAccount
	}
	s, err := a.ctrl.Refresh(ctx, acct, folder, false)
	if err != nil {
		return err
	}
	printlnFn("Syncing", s.FolderPath, "...")
	return nil
}

func (a *App) Get(ctx context.Context, remotePath string) error {
	acct := a.account()
	if acct == nil {
		return common.ErrNoAccount
	}
	t, err := a.ctrl.Download(ctx, acct, remotePath)
	if err != nil {
		return err
	}
	printlnFn("Downloading", t.RemotePath, "...")
	return nil
}

func (a *App) Put(ctx context.Context, localPath, remotePath, behavior string) error {
	acct := a.account()
	if acct == nil {
		return common.ErrNoAccount
	}
	var b transfer.Behavior
	switch behavior {
	case "", "forget":
		b = transfer.BehaviorForget
	case "move":
		b = transfer.BehaviorMove
	case "delete":
		b = transfer.BehaviorDelete
	default:
		return fmt.Errorf("unknown upload mode %q (want forget, move or delete)", behavior)
	}
	t, err := a.ctrl.Upload(ctx, acct, localPath, remotePath, b)
	if err != nil {
		return err
	}
	printlnFn("Uploading", t.RemotePath, "...")
	return nil
}

func (a *App) Cancel(ctx context.Context, remotePath string) error {
	acct := a.account()
	if acct == nil {
		return common.ErrNoAccount
	}
	a.ctrl.CancelTransfer(acct.Name, remotePath)
	return nil
}

// Trust resolves the pending certificate decision announced on the bus.
func (a *App) Trust(ctx context.Context, verdict string) error {
	a.mu.Lock()
	d := a.decision
	a.decision = nil
	a.mu.Unlock()
	if d == nil {
		printlnFn("No certificate decision pending")
		return nil
	}

	switch verdict {
	case "accept":
		if err := a.ctrl.AcceptCertificate(ctx, d.ID); err != nil {
			return err
		}
		printlnFn("Certificate accepted; retrying the sync")
		return nil
	case "decline":
		if err := a.ctrl.DeclineCertificate(ctx, d.ID); err != nil {
			return err
		}
		printlnFn("Certificate declined")
		return nil
	default:
		// Put it back so the user can answer again.
		a.mu.Lock()
		a.decision = d
		a.mu.Unlock()
		return fmt.Errorf("unknown verdict %q (want accept or decline)", verdict)
	}
}

func (a *App) Passcode(ctx context.Context, action string) error {
	switch action {
	case "set":
		code, err := GetPassword("New passcode", os.Stdout)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(code)
		if err := a.ctrl.Accounts().SetPasscode(ctx, string(code)); err != nil {
			return err
		}
		printlnFn("Passcode set")
		return nil
	case "check":
		code, err := GetPassword("Passcode", os.Stdout)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(code)
		if err := a.ctrl.Accounts().VerifyPasscode(ctx, string(code)); err != nil {
			return err
		}
		printlnFn("Passcode OK")
		return nil
	case "clear":
		if err := a.ctrl.Accounts().ClearPasscode(ctx); err != nil {
			return err
		}
		printlnFn("Passcode cleared")
		return nil
	default:
		return fmt.Errorf("unknown passcode action %q (want set, clear or check)", action)
	}
}

func (a *App) RemoveAccount(ctx context.Context, name string) error {
	if err := a.ctrl.RemoveAccount(ctx, name); err != nil {
		return err
	}
	a.mu.Lock()
	if a.current != nil && a.current.Name == name {
		a.current = nil
	}
	a.mu.Unlock()
	printlnFn("Account", name, "removed")
	return nil
}
