// Package cli is the operator console for the keychain agent: an interactive
// loop driving password setup, unlock/lock, account management, backups and
// signing requests against an in-process agent.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ettaverse/etta-keychain-sub002/internal/agent"
	"github.com/ettaverse/etta-keychain-sub002/internal/common"
	"github.com/ettaverse/etta-keychain-sub002/internal/router"
)

// App drives the agent from a terminal. Management commands call the agent's
// services directly; signing commands travel the full request protocol over
// an in-process loopback transport, exactly as a remote page would.
type App struct {
	agent  *agent.App
	router *router.Router
	reader *bufio.Reader
	out    io.Writer
	// masterKey mirrors the session master password for direct vault calls.
	// Wiped on lock and on exit.
	masterKey []byte
}

func NewApp(ctx context.Context, ag *agent.App) (*App, error) {
	pageEnd, vaultEnd := router.NewLoopback()

	if err := ag.ServeBus(ctx, vaultEnd); err != nil {
		return nil, err
	}

	r := router.NewWithTimeout(pageEnd.PublishEnvelope, ag.RequestTimeout(), ag.Logger())
	if err := pageEnd.SubscribeResponses(r.HandleResponse); err != nil {
		return nil, err
	}

	return &App{
		agent:  ag,
		router: r,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *App) isUnlocked() bool {
	return !a.agent.Auth().IsLocked()
}

func (a *App) status() string {
	if a.isUnlocked() {
		return "unlocked"
	}
	return "locked"
}

// forgetMasterKey wipes the CLI's copy of the master password.
func (a *App) forgetMasterKey() {
	if a.masterKey != nil {
		common.WipeByteArray(a.masterKey)
		a.masterKey = nil
	}
}

// Run starts the read-eval-print loop. It exits on EOF or the exit command.
func (a *App) Run(ctx context.Context) {
	defer a.forgetMasterKey()

	fmt.Fprintln(a.out, "etta-keychain console (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprintf(a.out, "kc (%s)> ", a.status())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				fmt.Fprintln(a.out, "Available commands: add, list, show, del, keys, active, export, import, sign, autolock, lock, status, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: setup, unlock, strength, status, handshake, exit")
			}

		case "setup":
			a.setup(ctx)
		case "unlock":
			a.unlock(ctx)
		case "lock":
			a.lock(ctx)
		case "passwd":
			a.changePassword(ctx)
		case "status":
			a.showStatus(ctx)
		case "strength":
			a.strength(ctx)
		case "autolock":
			a.autoLock(ctx, args)

		case "add":
			a.addAccount(ctx, args)
		case "l", "list":
			a.listAccounts(ctx)
		case "show":
			a.showAccount(ctx, args)
		case "del":
			a.deleteAccount(ctx, args)
		case "keys":
			a.updateKeys(ctx, args)
		case "active":
			a.activeAccount(ctx, args)

		case "export":
			a.exportBackup(ctx)
		case "import":
			a.importBackup(ctx, args)

		case "sign":
			a.sign(ctx, args)
		case "handshake":
			a.handshake(ctx)

		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return

		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}
