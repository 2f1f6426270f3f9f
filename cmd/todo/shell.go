package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/notify"
	"github.com/BuzzLyutic/todo-sync/internal/render"
	"github.com/BuzzLyutic/todo-sync/internal/syncer"
	"github.com/BuzzLyutic/todo-sync/internal/worker"
)

const shellHelp = `commands:
  list                 show the current view
  reload               fetch the collection again
  add TITLE            set the form title and submit it
  title TEXT           set the form title
  priority P           set the form priority (Low, Medium, High)
  due YYYY-MM-DD|-     set or clear the form due date
  form                 show the form
  submit               create a todo from the form
  toggle ID            flip the completion flag of a todo
  update ID            change title and priority of a todo
  purge                delete every completed todo
  quit                 leave the shell`

// lockedWriter keeps renders from different actions from interleaving.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (a *app) shellCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session; actions run concurrently and every success reloads the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd.Context(), watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reload whenever the server reports a change")
	return cmd
}

func (a *app) runShell(ctx context.Context, watch bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.in.Close()

	out := &lockedWriter{w: a.out}
	a.out = out

	s := a.newSynchronizer(syncer.WithOnChange(func(v syncer.View) {
		_ = render.View(out, v, time.Now())
	}))

	pool := worker.NewPool(a.logger, a.cfg.Workers, 16)
	pool.Start(ctx)
	defer pool.Stop()

	submit := func(name string, fn func(ctx context.Context) error) {
		if _, err := pool.Submit(name, fn); err != nil {
			a.logger.Warn("action dropped", zap.String("action", name), zap.Error(err))
		}
	}

	if watch {
		go a.watch(ctx, func() { submit("reload", s.Load) })
	}

	submit("reload", s.Load)

	for {
		line, ok, err := a.in.Next(ctx)
		if err != nil || !ok {
			return nil
		}

		name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		switch name {
		case "":
		case "help":
			fmt.Fprintln(out, shellHelp)
		case "quit", "exit":
			return nil
		case "list":
			_ = render.View(out, s.View(), time.Now())
		case "reload":
			submit("reload", s.Load)
		case "form":
			f := s.Form()
			due := "-"
			if f.DueDate != nil {
				due = f.DueDate.String()
			}
			fmt.Fprintf(out, "title: %q priority: %s due: %s\n", f.Title, f.Priority, due)
		case "title", "add":
			f := s.Form()
			f.Title = arg
			s.SetForm(f)
			if name == "add" {
				submit("create", s.Create)
			}
		case "priority":
			f := s.Form()
			f.Priority, _ = model.ParsePriority(arg)
			s.SetForm(f)
		case "due":
			f := s.Form()
			if arg == "-" || arg == "" {
				f.DueDate = nil
			} else {
				d, err := model.ParseDate(arg)
				if err != nil {
					fmt.Fprintf(out, "invalid date %q, want YYYY-MM-DD\n", arg)
					continue
				}
				f.DueDate = &d
			}
			s.SetForm(f)
		case "submit":
			submit("create", s.Create)
		case "toggle":
			id, err := parseID(arg)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			v := s.View()
			row, ok := v.Row(id)
			if !ok {
				fmt.Fprintf(out, "no todo #%d in the list\n", id)
				continue
			}
			submit("toggle", func(ctx context.Context) error { return s.Toggle(ctx, id, !row.Checked) })
		case "update":
			id, err := parseID(arg)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			// prompts read from the same input, so this one runs inline
			_ = s.Update(ctx, id)
		case "purge":
			submit("purge", s.DeleteCompleted)
		default:
			fmt.Fprintf(out, "unknown command %q, try help\n", name)
		}
	}
}

func (a *app) watch(ctx context.Context, onChange func()) {
	eventsURL, err := notify.EventsURL(a.cfg.APIURL)
	if err != nil {
		a.logger.Error("invalid events url", zap.Error(err))
		return
	}
	a.logger.Debug("watching for changes", zap.String("url", eventsURL))
	if err := notify.Watch(ctx, eventsURL, onChange); err != nil {
		a.logger.Error("change feed closed", zap.Error(err))
	}
}
