package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/qprofile/auth"
	"github.com/kbukum/qprofile/internal/reconciler"
	"github.com/kbukum/qprofile/logger"
)

// WatchOptions holds the watch command flags.
type WatchOptions struct {
	URL          string
	Password     string
	PollInterval time.Duration
	MaxBackoff   time.Duration
	LogLevel     string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror the user table in the terminal",
		Long: `Follow /events and reprint the user table on every change. When the
stream drops the table is kept current by polling /api/users. Press Enter to
retry the stream immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "http://localhost:5000", "server base URL")
	cmd.Flags().StringVar(&opts.Password, "password", "", "admin password (default $ADMIN_PASSWORD)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll", 5*time.Second, "polling interval while the stream is down")
	cmd.Flags().DurationVar(&opts.MaxBackoff, "max-backoff", 60*time.Second, "longest delay between failed polls")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")
	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, in io.Reader, out io.Writer) error {
	logCfg := logger.Config{Level: opts.LogLevel, Output: "stderr"}
	logCfg.ApplyDefaults()
	if err := logCfg.Validate(); err != nil {
		return err
	}
	logger.Init(logCfg, "qprofile-watch")

	password := opts.Password
	if password == "" {
		password = os.Getenv(auth.EnvAdminPassword)
	}

	r, err := reconciler.New(reconciler.Config{
		BaseURL:      opts.URL,
		Password:     password,
		PollInterval: opts.PollInterval,
		MaxBackoff:   opts.MaxBackoff,
	}, reconciler.WithOnChange(func(s reconciler.Snapshot) {
		renderSnapshot(out, s)
	}))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			r.Refocus()
		}
	}()

	return r.Run(ctx)
}

// renderSnapshot prints the connection status followed by the table.
func renderSnapshot(w io.Writer, s reconciler.Snapshot) {
	status := string(s.State)
	if s.LastError != nil {
		status += " (" + s.LastError.Error() + ")"
	}
	fmt.Fprintf(w, "\n[%s] %s, %d users\n", s.At.Format(time.TimeOnly), status, len(s.Rows))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tCREATED")
	for _, u := range s.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
