package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/router"
)

// sign sends a signBuffer request through the full request protocol: router,
// loopback transport, relay, dispatcher. The same path a remote page takes.
func (a *App) sign(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: sign <message...> [method]")
		return
	}

	method := "posting"
	message := args
	if len(args) > 1 {
		last := strings.ToLower(args[len(args)-1])
		switch last {
		case "posting", "active", "memo", "owner":
			method = last
			message = args[:len(args)-1]
		}
	}

	resp, err := a.router.Call(ctx, router.EventRequest, map[string]any{
		"type":    "signBuffer",
		"message": strings.Join(message, " "),
		"method":  method,
	})
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	if !resp.Success {
		fmt.Fprintln(a.out, "Request failed:", resp.Error)
		return
	}
	fmt.Fprintf(a.out, "Result: %v\n", resp.Result)
}

// handshake probes for a responsive vault holder over the request protocol.
func (a *App) handshake(ctx context.Context) {
	got := make(chan router.Response, 1)
	err := a.router.RequestHandshake(func(resp router.Response) {
		select {
		case got <- resp:
		default:
		}
	})
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	select {
	case resp := <-got:
		fmt.Fprintln(a.out, "Vault holder responded:", resp.Message)
	case <-time.After(2 * time.Second):
		fmt.Fprintln(a.out, "No response.")
	case <-ctx.Done():
	}
}
