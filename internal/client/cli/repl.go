package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = func(args ...any) { fmt.Println(args...) }

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasAccount() bool
	Login(ctx context.Context) error
	ListAccounts(ctx context.Context) error
	Use(ctx context.Context, name string) error
	List(ctx context.Context, folder string) error
	Sync(ctx context.Context, folder string) error
	Get(ctx context.Context, remotePath string) error
	Put(ctx context.Context, localPath, remotePath, behavior string) error
	Cancel(ctx context.Context, remotePath string) error
	Trust(ctx context.Context, verdict string) error
	Passcode(ctx context.Context, action string) error
	RemoveAccount(ctx context.Context, name string) error
}

// runREPL starts a read-eval-print loop for the nimbus CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	help                         — show available commands
//	login                        — authenticate against a server
//	accounts                     — list accounts on this device
//	use <name>                   — switch the current account
//	ls [folder]                  — list the locally known folder contents
//	sync [folder]                — refresh a folder from the server
//	get <remote>                 — download a file's content
//	put <local> <remote> [mode]  — upload a file (mode: forget|move|delete)
//	cancel <remote>              — stop an active transfer
//	trust accept|decline         — resolve a pending certificate decision
//	passcode set|clear|check     — manage the local passcode lock
//	rmaccount <name>             — remove an account and its data
//	exit | quit                  — leave the program
//
// Errors returned by command handlers are printed, and the loop carries on;
// a failed command never ends the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("nimbus %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.hasAccount() {
				printlnFn("Available commands: ls, sync, get, put, cancel, trust, accounts, use, rmaccount, passcode, login, exit")
			} else {
				printlnFn("Available commands: login, accounts, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "accounts":
			err = a.ListAccounts(ctx)

		case "use":
			if len(args) != 1 {
				printlnFn("Usage: use <name>")
				continue
			}
			err = a.Use(ctx, args[0])

		case "ls", "list":
			err = a.List(ctx, argOr(args, 0, "/"))

		case "sync":
			err = a.Sync(ctx, argOr(args, 0, "/"))

		case "get":
			if len(args) != 1 {
				printlnFn("Usage: get <remote-path>")
				continue
			}
			err = a.Get(ctx, args[0])

		case "put":
			if len(args) < 2 {
				printlnFn("Usage: put <local-path> <remote-path> [forget|move|delete]")
				continue
			}
			err = a.Put(ctx, args[0], args[1], argOr(args, 2, ""))

		case "cancel":
			if len(args) != 1 {
				printlnFn("Usage: cancel <remote-path>")
				continue
			}
			err = a.Cancel(ctx, args[0])

		case "trust":
			if len(args) != 1 {
				printlnFn("Usage: trust accept|decline")
				continue
			}
			err = a.Trust(ctx, args[0])

		case "passcode":
			if len(args) != 1 {
				printlnFn("Usage: passcode set|clear|check")
				continue
			}
			err = a.Passcode(ctx, args[0])

		case "rmaccount":
			if len(args) != 1 {
				printlnFn("Usage: rmaccount <name>")
				continue
			}
			err = a.RemoveAccount(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}
	return fallback
}
