package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/hierarchical-memory-engine/internal/chat"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start an interactive session with the agent",
		RunE:  runRun,
	})
}

func runRun(cmd *cobra.Command, args []string) error {
	c, err := resolvedConfig()
	if err != nil {
		return err
	}

	deps, err := openDeps(c)
	if err != nil {
		return err
	}
	defer deps.Close()

	chatClient := chat.NewOllamaClient(c.ChatURL, c.ModelID)
	engine := buildEngine(deps, chatClient)

	fmt.Fprintf(os.Stdout, "agent-memory: %s (model %s, workspace %s)\n", deps.agent.Name, deps.agent.ModelID, deps.sandbox.Root())
	fmt.Fprintln(os.Stdout, "Type a message and press Enter. Ctrl-D to exit, Ctrl-C to cancel the current turn.")

	var activeCancel atomic.Pointer[context.CancelFunc]
	var shuttingDown atomic.Bool
	var exitCode atomic.Int32

	sigint := make(chan os.Signal, 1)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	signal.Notify(sigterm, syscall.SIGTERM)
	defer signal.Stop(sigint)
	defer signal.Stop(sigterm)

	go func() {
		for range sigint {
			if cancel := activeCancel.Load(); cancel != nil {
				// A turn is in flight: cancel it cooperatively and let
				// the prompt loop continue, per §6 ("cancels the
				// pending tool... and returns control").
				(*cancel)()
				continue
			}
			// Idle at the prompt: treat SIGINT as a request to exit.
			// The blocking stdin read below only notices this once it
			// next returns (a line or EOF) — an accepted simplification
			// for this thin, out-of-scope CLI driver (spec.md §1).
			exitCode.Store(130)
			shuttingDown.Store(true)
		}
	}()
	go func() {
		<-sigterm
		exitCode.Store(0)
		shuttingDown.Store(true)
		if cancel := activeCancel.Load(); cancel != nil {
			(*cancel)()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for !shuttingDown.Load() {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		if shuttingDown.Load() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		turnCtx, cancelTurn := context.WithCancel(context.Background())
		cf := context.CancelFunc(cancelTurn)
		activeCancel.Store(&cf)
		reply, stepErr := engine.Step(turnCtx, line)
		activeCancel.Store(nil)
		cancelTurn()

		switch {
		case shuttingDown.Load():
		case stepErr != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", stepErr)
		default:
			fmt.Fprintln(os.Stdout, reply)
		}
	}

	if shuttingDown.Load() {
		if code := exitCode.Load(); code != 0 {
			return &ExitError{Code: int(code), Err: fmt.Errorf("interrupted")}
		}
		return nil
	}
	return scanner.Err()
}
