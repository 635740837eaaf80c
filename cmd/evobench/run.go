package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/evobench/internal/config"
	"github.com/stellarlinkco/evobench/internal/engine"
	"github.com/stellarlinkco/evobench/internal/store"
	"github.com/stellarlinkco/evobench/internal/transcript"
)

// defaultInterval paces iterations so a free-tier endpoint serving all three
// roles is not hammered back to back.
const defaultInterval = 12 * time.Second

var (
	loadConfig              = config.Load
	openStore               = store.Open
	newControllerFromConfig = engine.FromConfig
)

type runOptions struct {
	domain         string
	iterations     int
	interval       time.Duration
	transcriptPath string
	sessionID      string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run benchmark iterations against a domain",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.domain, "domain", "", "knowledge domain to benchmark (required)")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 10, "number of iterations to run")
	cmd.Flags().DurationVar(&opts.interval, "interval", defaultInterval, "pause between iterations")
	cmd.Flags().StringVar(&opts.transcriptPath, "transcript", "", "append loop output to this file")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "resume an existing session id")

	return cmd
}

func runLoop(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}

	domain := strings.TrimSpace(opts.domain)
	if opts.iterations <= 0 {
		return fmt.Errorf("run: iterations must be > 0 (got %d)", opts.iterations)
	}
	if opts.interval < 0 {
		return fmt.Errorf("run: interval must be >= 0 (got %v)", opts.interval)
	}

	stor, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stor.Close() }()

	controller, err := newControllerFromConfig(st.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	session, err := resolveSession(ctx, stor, controller, domain, opts.sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path := strings.TrimSpace(opts.transcriptPath); path != "" {
		tw, err := transcript.New(out, path)
		if err != nil {
			return err
		}
		defer func() { _ = tw.Close() }()
		out = tw
	}

	fmt.Fprintf(out, "Session: %s  Domain: %s\n\n", session.ID, session.Domain)

	for i := 0; i < opts.iterations; i++ {
		if i > 0 && opts.interval > 0 {
			if err := waitInterval(ctx, opts.interval); err != nil {
				fmt.Fprintln(out, "\nInterrupted.")
				return nil
			}
		}

		rec, err := controller.RunIteration(ctx, session.Domain)
		if err != nil {
			return err
		}
		if err := stor.SaveRecord(ctx, session.ID, rec); err != nil {
			return err
		}
		printRecord(out, rec)

		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nInterrupted.")
			return nil
		}
	}

	printRunSummary(out, controller)
	return nil
}

// resolveSession either creates a fresh session or rehydrates an existing one
// from its stored records.
func resolveSession(ctx context.Context, stor store.Store, controller *engine.Controller, domain, sessionID string) (*store.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID != "" {
		session, err := stor.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("run: load session %q: %w", sessionID, err)
		}
		records, err := stor.ListRecords(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		controller.Restore(records)
		return session, nil
	}

	if domain == "" {
		return nil, fmt.Errorf("run: specify --domain or --session")
	}

	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("run: generate session id: %w", err)
	}
	session := &store.Session{ID: id, Domain: domain, CreatedAt: time.Now().UTC()}
	if err := stor.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func waitInterval(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func printRunSummary(out io.Writer, controller *engine.Controller) {
	fmt.Fprintf(out, "\nCompleted %d iterations.", controller.Iterations())
	if ema, ok := controller.EMA(); ok {
		fmt.Fprintf(out, " EMA: %s", formatScore(ema))
	}
	fmt.Fprintln(out)
}

func newSessionID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("sess_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
