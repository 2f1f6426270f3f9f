package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-sync/internal/client"
	"github.com/BuzzLyutic/todo-sync/internal/config"
	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/render"
	"github.com/BuzzLyutic/todo-sync/internal/syncer"
)

type app struct {
	cfg    config.ClientConfig
	logger *zap.Logger
	api    *client.Client
	in     *lineReader
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	a := &app{
		cfg: config.LoadClient(),
		in:  newLineReader(stdin),
		out: stdout,
	}

	root := &cobra.Command{
		Use:           "todo",
		Short:         "Terminal client for the todos API",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.in.Close()
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(os.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.APIURL, "api", a.cfg.APIURL, "base URL of the todos API")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.IntVar(&a.cfg.Workers, "workers", a.cfg.Workers, "concurrent actions in shell mode")

	root.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.toggleCmd(),
		a.updateCmd(),
		a.purgeCmd(),
		a.statsCmd(),
		a.shellCmd(),
	)
	return root
}

func (a *app) init() error {
	zcfg := zap.NewDevelopmentConfig()
	level, err := zap.ParseAtomicLevel(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return err
	}
	a.logger = logger

	api, err := client.New(a.cfg.APIURL, nil)
	if err != nil {
		return err
	}
	a.api = api
	return nil
}

func (a *app) newSynchronizer(opts ...syncer.Option) *syncer.Synchronizer {
	opts = append([]syncer.Option{syncer.WithPrompter(&linePrompter{in: a.in, out: a.out})}, opts...)
	return syncer.New(a.api, a.logger, opts...)
}

func (a *app) print(s *syncer.Synchronizer) error {
	return render.View(a.out, s.View(), time.Now())
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.newSynchronizer()
			if err := s.Load(cmd.Context()); err != nil {
				return err
			}
			return a.print(s)
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var priority, due string

	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Create a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := buildForm(strings.Join(args, " "), priority, due)
			if err != nil {
				return err
			}

			s := a.newSynchronizer()
			s.SetForm(form)
			if err := s.Create(cmd.Context()); err != nil {
				return err
			}
			return a.print(s)
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityLow), "Low, Medium or High")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	return cmd
}

func (a *app) toggleCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "toggle ID",
		Short: "Mark a todo as completed (or not, with --undo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s := a.newSynchronizer()
			if err := s.Load(cmd.Context()); err != nil {
				return err
			}
			if err := s.Toggle(cmd.Context(), id, !undo); err != nil {
				return err
			}
			return a.print(s)
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark as not completed")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update ID",
		Short: "Change the title and priority of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s := a.newSynchronizer()
			if err := s.Load(cmd.Context()); err != nil {
				return err
			}
			if err := s.Update(cmd.Context(), id); err != nil {
				return err
			}
			return a.print(s)
		},
	}
}

func (a *app) purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every completed todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.newSynchronizer()
			if err := s.DeleteCompleted(cmd.Context()); err != nil {
				return err
			}
			return a.print(s)
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.api.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return render.Stats(a.out, stats)
		},
	}
}

func buildForm(title, priority, due string) (syncer.Form, error) {
	form := syncer.DefaultForm()
	form.Title = title
	if priority != "" {
		// unknown values are sent as typed, the server decides
		form.Priority, _ = model.ParsePriority(priority)
	}
	if due != "" {
		d, err := model.ParseDate(due)
		if err != nil {
			return form, fmt.Errorf("due date: %w", err)
		}
		form.DueDate = &d
	}
	return form, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
