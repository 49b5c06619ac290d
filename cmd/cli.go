package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/config"
	"github.com/nextlevelbuilder/forgecode/internal/looper"
	"github.com/nextlevelbuilder/forgecode/internal/message"
)

// agentLabelWidth is the fixed display column every "[agent]" prefix
// is padded to, so replies from agents with differently-sized ids
// (e.g. "react" vs "code_editing") line up in the terminal.
const agentLabelWidth = 14

// padAgentLabel right-pads id to agentLabelWidth using display-cell
// width rather than byte/rune count, so the padding stays aligned even
// if an agent id ever carries wide (e.g. CJK) characters.
func padAgentLabel(id string) string {
	w := runewidth.StringWidth(id)
	if w >= agentLabelWidth {
		return id
	}
	return id + strings.Repeat(" ", agentLabelWidth-w)
}

// printListener prints every AgentMessage the Router addresses to the
// user, mirroring the teacher's agent_chat_standalone.go onEvent
// stderr tool-call logging, narrowed to this build's session-less CLI.
type printListener struct{ sessionID string }

func (p printListener) DeliverToUser(m *message.AgentMessage) {
	if m.Data[sessionIDDataKey] != p.sessionID {
		return
	}
	fmt.Printf("\n[%s] %s\n\n", padAgentLabel(string(m.FromAgent)), m.Content)
}

const sessionIDDataKey = "session_id"

func cliCmd() *cobra.Command {
	var oneShot string
	var remoteAddr string

	c := &cobra.Command{
		Use:   "cli",
		Short: "Chat with the agent orchestration standalone, without the WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remoteAddr != "" {
				return runRemoteCLI(remoteAddr, oneShot)
			}
			return runCLI(oneShot)
		},
	}
	c.Flags().StringVarP(&oneShot, "message", "m", "", "one-shot message (omit for interactive REPL)")
	c.Flags().StringVar(&remoteAddr, "remote", "", "connect to a running server's /ws endpoint (e.g. ws://localhost:8080/ws) instead of running standalone")
	return c
}

func runCLI(oneShot string) error {
	cfg, err := config.Load(resolveConfigPath(), nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sys, err := buildSystem(cfg)
	if err != nil {
		return fmt.Errorf("wire system: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go sys.coord.Run(ctx)

	sessionID := uuid.NewString()
	sys.router.RegisterUserListener(sessionID, printListener{sessionID: sessionID})
	defer sys.router.UnregisterUserListener(sessionID)

	sys.events.Subscribe(sessionID, func(e bus.Event) {
		if e.SessionID != sessionID || e.Name != "tool_call" {
			return
		}
		if payload, ok := e.Payload.(map[string]string); ok {
			fmt.Fprintf(os.Stderr, "  [tool] %s\n", payload["name"])
		}
	})
	defer sys.events.Unsubscribe(sessionID)

	turn := func(msg string) error {
		requestID := "cli-" + uuid.NewString()[:8]
		loop, err := sys.loops.StartLoop(ctx, requestID, sessionID, msg, sys.loopConfig())
		if err != nil {
			return err
		}
		result := <-loop.Results()
		sys.saveTurn()
		if result.Status != looper.StatusCompleted && result.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		}
		return nil
	}

	if oneShot != "" {
		return turn(oneShot)
	}

	fmt.Fprintln(os.Stderr, "forgecode interactive CLI — standalone mode")
	fmt.Fprintf(os.Stderr, "Session: %s\nType \"exit\" to quit.\n\n", sessionID)

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
		if err := turn(input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		}
	}
}
