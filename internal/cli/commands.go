// Package cli implements learnflowctl, a command line client for the learnflow API.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"learnflow/internal/config"
	"learnflow/internal/models"
	"learnflow/internal/poller"

	"github.com/spf13/cobra"
)

type options struct {
	apiBase  string
	timeout  time.Duration
	interval time.Duration
}

func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "learnflowctl",
		Short:         "Manage learnflow projects and generation runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiBase, "api", cfg.APIBase, "API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	root.PersistentFlags().DurationVar(&opts.interval, "interval", cfg.PollInterval, "status poll interval for watch")

	root.AddCommand(projectsCommand(opts), startCommand(opts), statusCommand(opts), watchCommand(opts), uploadCommand(opts))
	return root
}

func (o *options) client() *Client {
	return NewClient(o.apiBase, o.timeout)
}

func projectsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "projects", Short: "List, create and delete projects"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := opts.client().ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tUPDATED")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, p.UpdatedAt)
			}
			return tw.Flush()
		},
	})

	var p models.Project
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Name = args[0]
			created, err := opts.client().CreateProject(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	create.Flags().StringVar(&p.ID, "id", "", "project id (generated when empty)")
	create.Flags().StringVar(&p.Description, "description", "", "project description")
	create.Flags().StringSliceVar(&p.Tags, "tag", nil, "tag, repeatable")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a project and all its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func startCommand(opts *options) *cobra.Command {
	var (
		language     string
		summaryLevel string
		imageStyle   string
		quizCount    int
		autoImages   bool
		generatePPT  bool
		watch        bool
	)
	cmd := &cobra.Command{
		Use:   "start ID",
		Short: "Start a generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			flags := cmd.Flags()
			set := func(name string, v any) {
				if flags.Changed(name) {
					body[name] = v
				}
			}
			set("language", language)
			set("summaryLevel", summaryLevel)
			set("imageStyle", imageStyle)
			set("quizCount", quizCount)
			set("autoImages", autoImages)
			set("generatePPT", generatePPT)

			st, err := opts.client().Start(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s started: %s\n", st.RunID, joinSteps(st.Stages))
			if !watch {
				return nil
			}
			return watchProject(cmd.Context(), cmd.OutOrStdout(), opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&language, "language", "zh", "output language (zh or en)")
	f.StringVar(&summaryLevel, "summaryLevel", "global", "summary level (chapter, global or both)")
	f.StringVar(&imageStyle, "imageStyle", "flat", "image style (academic, flat, realistic or wireframe)")
	f.IntVar(&quizCount, "quizCount", 10, "number of quiz questions, 0 skips the quiz")
	f.BoolVar(&autoImages, "autoImages", false, "generate images")
	f.BoolVar(&generatePPT, "generatePPT", false, "generate slides")
	f.BoolVar(&watch, "watch", false, "watch the run until it finishes")
	return cmd
}

func statusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show the job status of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func watchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Poll a project's status until the run completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchProject(cmd.Context(), cmd.OutOrStdout(), opts, args[0])
		},
	}
}

func uploadCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload ID FILE...",
		Short: "Upload source documents to a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make(map[string]io.Reader, len(args)-1)
			for _, path := range args[1:] {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				files[path] = f
			}
			uploaded, err := opts.client().Upload(cmd.Context(), args[0], files)
			if err != nil {
				return err
			}
			for _, f := range uploaded {
				fmt.Fprintln(cmd.OutOrStdout(), f.Filename)
			}
			return nil
		},
	}
}

// watchProject prints each status change and returns once the run is terminal.
// A run that ended in error is reported as an error.
func watchProject(ctx context.Context, out io.Writer, opts *options, projectID string) error {
	p := poller.New(poller.NewHTTPFetcher(opts.apiBase, opts.timeout), opts.interval)
	outcome := make(chan poller.Outcome, 1)
	var last models.JobStatus
	h := p.Start(projectID, func(st models.JobStatus) {
		if st.Step != last.Step || st.Status != last.Status {
			printStatus(out, st)
		}
		last = st
	}, func(o poller.Outcome) {
		outcome <- o
	})
	defer h.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	select {
	case o := <-outcome:
		if o.Err != nil {
			return o.Err
		}
		if o.Status.Status == models.JobError {
			return fmt.Errorf("run %s failed at %s: %s", o.Status.RunID, o.Status.Step, o.Status.LastError)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printStatus(out io.Writer, st models.JobStatus) {
	line := fmt.Sprintf("%-9s %3d%%  %s", st.Step, st.Percent, st.Status)
	if st.LastError != "" {
		line += "  " + st.LastError
	}
	fmt.Fprintln(out, line)
}

func joinSteps(steps []models.Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, " > ")
}
