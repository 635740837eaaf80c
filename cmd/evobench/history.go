package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/evobench/internal/store"
)

func newSessionsCmd(st *cliState) *cobra.Command {
	var domain string
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded benchmark sessions",
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
			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = stor.Close() }()

			sessions, err := stor.ListSessions(cmd.Context(), store.SessionFilter{
				Domain: strings.TrimSpace(domain),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tDOMAIN\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Domain, s.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "filter by domain")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to list")
	return cmd
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var trend bool

	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show the iteration history of a session",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			if sessionID == "" {
				return fmt.Errorf("history: empty session id")
			}

			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = stor.Close() }()

			if trend {
				return printTrend(cmd, stor, sessionID)
			}
			return printHistory(cmd, stor, sessionID)
		},
	}

	cmd.Flags().BoolVar(&trend, "trend", false, "print only the score trajectory")
	return cmd
}

func printHistory(cmd *cobra.Command, stor store.Store, sessionID string) error {
	records, err := stor.ListRecords(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No iterations recorded.")
		return nil
	}
	for _, rec := range records {
		printRecord(cmd.OutOrStdout(), rec)
	}
	return nil
}

func printTrend(cmd *cobra.Command, stor store.Store, sessionID string) error {
	points, err := stor.GetTrend(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No iterations recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITER\tDIFFICULTY\tSCORE\tEMA\tDEGRADED")
	for _, p := range points {
		degraded := ""
		if p.Degraded {
			degraded = "yes"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", p.Iteration, p.Difficulty, formatScore(p.Score), formatScore(p.EMA), degraded)
	}
	return tw.Flush()
}
