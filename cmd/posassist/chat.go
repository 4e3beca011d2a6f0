// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/internal/log"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

var (
	chatShowOutcomes bool
	chatWatch        bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Take an order interactively in the terminal",
	Long: heredoc.Doc(`
		Start a session and read customer utterances from stdin, one per line.

		Commands:
		  /new   start a fresh session
		  /quit  leave

		Examples:
		  posassist chat --persona barista --store uptown
		  posassist chat --llm-provider anthropic --catalog-db catalog.db
		  posassist chat --watch
		  echo "a latte please" | posassist chat`),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatShowOutcomes, "outcomes", false, "print the dispatched operations after each reply")
	chatCmd.Flags().BoolVar(&chatWatch, "watch", false, "reload persona files when they change")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := log.Logger()

	a, err := buildApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("session shutdown incomplete", zap.Error(err))
		}
	}()

	if config.Metrics.Addr != "" {
		serveMetrics(ctx, config.Metrics.Addr, a.registry, logger)
	}
	if chatWatch {
		updates, err := a.personas.Watch(ctx, config.Persona.Dir)
		if err != nil {
			return err
		}
		go func() {
			for u := range updates {
				logger.Debug("persona watch", zap.String("persona", u.Key), zap.String("action", u.Action), zap.Error(u.Err))
			}
		}()
	}

	out := cmd.OutOrStdout()
	greet := func() {
		if greeting, err := a.personas.Body(ctx, config.Persona.Key, persona.KindGreeting); err == nil && greeting != "" {
			fmt.Fprintln(out, greeting)
		}
	}
	sessionID := uuid.NewString()
	greet()

	in := cmd.InOrStdin()
	_, interactive := terminalFd(in)
	lines := make(chan string)
	go readLines(in, lines)

	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			a.manager.End(sessionID)
			sessionID = uuid.NewString()
			greet()
			continue
		}

		res, err := a.manager.Submit(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, res.AcknowledgmentText)
		if chatShowOutcomes {
			printOutcomes(out, res)
		}
		if res.SessionFatal {
			fmt.Fprintln(out, "(session ended; type /new to start again)")
		}
	}
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func printOutcomes(w io.Writer, res *types.TurnResult) {
	fmt.Fprintf(w, "  [phase %s]\n", res.Phase)
	for _, o := range res.Outcomes {
		status := string(o.Status)
		if o.Kind != "" {
			status += " " + string(o.Kind)
		}
		if o.Confirm {
			status += " (confirm)"
		}
		fmt.Fprintf(w, "  %-22s %.2f  %s\n", o.Operation, o.Confidence, status)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "  ! %s: %s\n", d.Kind, d.Reason)
	}
}
