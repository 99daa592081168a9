package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskflow/domain"
	"taskflow/stats"
	"taskflow/storage"
)

var (
	tasksCategory string
	tasksAssignee string
	tasksJSON     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print today's statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCore(cfg, logger)
		if err != nil {
			return err
		}
		ts, err := c.agg.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		return writeStats(cmd.OutOrStdout(), ts, stats.New(ts, time.Now(), cfg.Location))
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks of a category",
	Long: `List the tasks of one category, optionally for one assignee.

Categories: all, inProgress, dueToday, dueWeek, overdue, urgent, completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCore(cfg, logger)
		if err != nil {
			return err
		}
		ts, err := c.agg.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		records, err := stats.New(ts, time.Now(), cfg.Location).FilterBy(tasksCategory, tasksAssignee)
		if err != nil {
			return err
		}
		if tasksJSON {
			return writeJSON(cmd.OutOrStdout(), records)
		}
		return writeTaskTable(cmd.OutOrStdout(), records)
	},
}

var initStorageCmd = &cobra.Command{
	Use:   "init-storage",
	Short: "Create the users table and signup queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.registryEnabled() {
			return fmt.Errorf("missing STORAGE_CONNECTION_STRING")
		}
		approvals, err := storage.New(cfg.StorageConn, cfg.UsersTable, cfg.SignupQueue)
		if err != nil {
			return err
		}
		if err := approvals.Provision(cmd.Context()); err != nil {
			return err
		}
		logger.WithFields(log.Fields{"table": cfg.UsersTable, "queue": cfg.SignupQueue}).Info("storage ready")
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksCategory, "category", "c", string(domain.CategoryAll), "Category to list")
	tasksCmd.Flags().StringVarP(&tasksAssignee, "assignee", "a", "", "Only tasks of this assignee")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Print JSON")
}

type statsReport struct {
	Global    stats.GlobalSnapshot  `json:"global"`
	Sources   []stats.SourceTotal   `json:"sources"`
	Assignees []stats.AssigneeStats `json:"assignees"`
	Warnings  []string              `json:"warnings,omitempty"`
}

func writeStats(w io.Writer, ts domain.TaskSet, e *stats.Engine) error {
	r := statsReport{Global: e.Global(), Sources: e.BySource(), Assignees: e.ByAssignee()}
	for _, warn := range ts.Warnings() {
		r.Warnings = append(r.Warnings, warn.Error())
	}
	return writeJSON(w, r)
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeTaskTable(w io.Writer, records []domain.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tDUE\tDONE\tASSIGNEE\tTITLE")
	for _, r := range records {
		due := "-"
		if r.DueDate != nil {
			due = r.DueDate.String()
		}
		done := ""
		if r.Completed {
			done = "x"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Source.Label(), due, done, r.AssigneeName(), r.Title)
	}
	return tw.Flush()
}
