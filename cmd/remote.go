package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/nextlevelbuilder/forgecode/pkg/protocol"
)

// runRemoteCLI is the `cli --remote` mode: a lightweight WebSocket
// client that drives a running server's /ws endpoint instead of
// wiring an in-process Coordinator, for attaching to a forgecode
// instance running elsewhere. Uses coder/websocket rather than the
// gorilla/websocket the gateway serves with — the gateway needs
// gorilla's http.ResponseWriter-based Upgrade; a pure client dial has
// no such requirement, and coder/websocket is the lighter import.
func runRemoteCLI(addr, oneShot string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.CloseNow()

	go func() {
		for {
			var frame protocol.Frame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				return
			}
			fmt.Printf("\n[%s] %s\n\n", padAgentLabel(string(frame.Type)), frame.Content)
		}
	}()

	send := func(msg string) error {
		return wsjson.Write(ctx, conn, protocol.ClientInput{Message: msg})
	}

	if oneShot != "" {
		if err := send(oneShot); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		<-ctx.Done()
		return nil
	}

	fmt.Fprintf(os.Stderr, "forgecode remote CLI — connected to %s\nType \"exit\" to quit.\n\n", addr)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return nil
		default:
		}

		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return nil
		}
		if err := send(input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		}
	}
}
