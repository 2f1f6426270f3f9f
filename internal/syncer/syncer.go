// Package syncer keeps a local view of the remote todo collection.
//
// The view is never patched from mutation responses: every successful
// mutation is followed by a full reload, and each reload replaces the whole
// view at once. Overlapping reloads are not ordered; whichever response is
// stored last wins.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-sync/internal/client"
	"github.com/BuzzLyutic/todo-sync/internal/model"
)

var (
	ErrUnknownRecord = errors.New("record is not in the current view")
	ErrNoPrompter    = errors.New("no prompter configured")
)

// API is the remote collection the synchronizer talks to.
type API interface {
	List(ctx context.Context) ([]model.Todo, error)
	Create(ctx context.Context, req client.CreateRequest) error
	SetCompleted(ctx context.Context, id int64, completed bool) error
	Replace(ctx context.Context, req client.ReplaceRequest) error
	DeleteCompleted(ctx context.Context) error
}

// Row is one rendered record. Checked is the local completion indicator and
// can differ from Completed after a toggle until the next load.
type Row struct {
	model.Todo
	Checked bool
}

type View struct {
	Rows     []Row
	LoadedAt time.Time
}

func (v View) Row(id int64) (Row, bool) {
	for _, r := range v.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Form holds the values of the "new todo" form.
type Form struct {
	Title    string
	Priority model.Priority
	DueDate  *model.Date
}

func DefaultForm() Form {
	return Form{Priority: model.PriorityLow}
}

// EditInput is what a Prompter collects for an update.
type EditInput struct {
	Title    string
	Priority model.Priority
}

// Prompter collects the new title and priority for a record. ok=false means
// the user cancelled.
type Prompter interface {
	PromptEdit(ctx context.Context, current Row) (in EditInput, ok bool, err error)
}

type Option func(*Synchronizer)

func WithPrompter(p Prompter) Option {
	return func(s *Synchronizer) { s.prompter = p }
}

// WithOnChange registers fn to be called with every new view.
func WithOnChange(fn func(View)) Option {
	return func(s *Synchronizer) { s.onChange = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

type Synchronizer struct {
	api      API
	logger   *zap.Logger
	prompter Prompter
	onChange func(View)
	now      func() time.Time

	view atomic.Pointer[View]

	formMu sync.Mutex
	form   Form
}

func New(api API, logger *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:    api,
		logger: logger,
		now:    time.Now,
		form:   DefaultForm(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view.Store(&View{})
	return s
}

// View returns the current view. Callers must not modify the returned rows.
func (s *Synchronizer) View() View {
	return *s.view.Load()
}

func (s *Synchronizer) Form() Form {
	s.formMu.Lock()
	defer s.formMu.Unlock()
	return s.form
}

func (s *Synchronizer) SetForm(f Form) {
	s.formMu.Lock()
	defer s.formMu.Unlock()
	s.form = f
}

// Load fetches the full collection and replaces the view with it.
// On failure the view is left as it was.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.logger.Debug("fetching todos")

	todos, err := s.api.List(ctx)
	if err != nil {
		s.logFailure("failed to fetch todos", err)
		return err
	}

	rows := make([]Row, len(todos))
	for i, t := range todos {
		rows[i] = Row{Todo: t, Checked: t.Completed}
	}
	s.publish(&View{Rows: rows, LoadedAt: s.now()})

	s.logger.Debug("fetched todos", zap.Int("count", len(rows)))
	return nil
}

// Create submits the form as a new record. The form is cleared only when the
// server accepts it and nobody edited it in the meantime.
func (s *Synchronizer) Create(ctx context.Context) error {
	form := s.Form()
	s.logger.Debug("adding todo", zap.String("title", form.Title))

	err := s.api.Create(ctx, client.CreateRequest{
		Title:     form.Title,
		Completed: false,
		Priority:  form.Priority,
		DueDate:   form.DueDate,
	})
	if err != nil {
		s.logFailure("failed to add todo", err, zap.String("title", form.Title))
		return err
	}

	s.logger.Info("todo added", zap.String("title", form.Title))
	s.resetForm(form)
	return s.Load(ctx)
}

// resetForm clears the form unless it was edited while submitted was in flight.
func (s *Synchronizer) resetForm(submitted Form) {
	s.formMu.Lock()
	defer s.formMu.Unlock()
	if s.form == submitted {
		s.form = DefaultForm()
	}
}

// Toggle flips the local indicator right away, then asks the server to store
// the new flag. When the server refuses, the indicator stays flipped until the
// next successful load.
func (s *Synchronizer) Toggle(ctx context.Context, id int64, completed bool) error {
	if !s.markChecked(id, completed) {
		return fmt.Errorf("toggle %d: %w", id, ErrUnknownRecord)
	}

	if err := s.api.SetCompleted(ctx, id, completed); err != nil {
		s.logFailure("failed to update todo", err, zap.Int64("id", id))
		return err
	}

	s.logger.Info("todo updated", zap.Int64("id", id), zap.Bool("completed", completed))
	return s.Load(ctx)
}

// Update asks the prompter for a new title and priority and replaces the
// record, keeping its last loaded completion flag.
func (s *Synchronizer) Update(ctx context.Context, id int64) error {
	if s.prompter == nil {
		return ErrNoPrompter
	}
	current := s.view.Load()
	row, ok := current.Row(id)
	if !ok {
		return fmt.Errorf("update %d: %w", id, ErrUnknownRecord)
	}

	in, ok, err := s.prompter.PromptEdit(ctx, row)
	if err != nil {
		s.logger.Error("failed to read update input", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if !ok {
		s.logger.Info("update cancelled", zap.Int64("id", id))
		return nil
	}

	err = s.api.Replace(ctx, client.ReplaceRequest{
		ID:        id,
		Title:     in.Title,
		Completed: row.Completed,
		Priority:  in.Priority,
	})
	if err != nil {
		s.logFailure("failed to update todo", err, zap.Int64("id", id))
		return err
	}

	s.logger.Info("todo updated", zap.Int64("id", id), zap.String("title", in.Title))
	return s.Load(ctx)
}

// DeleteCompleted asks the server to drop every completed record.
func (s *Synchronizer) DeleteCompleted(ctx context.Context) error {
	s.logger.Debug("deleting completed todos")

	if err := s.api.DeleteCompleted(ctx); err != nil {
		s.logFailure("failed to delete completed todos", err)
		return err
	}

	s.logger.Info("completed todos deleted")
	return s.Load(ctx)
}

func (s *Synchronizer) markChecked(id int64, checked bool) bool {
	for {
		current := s.view.Load()
		idx := -1
		for i, r := range current.Rows {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}

		next := &View{Rows: make([]Row, len(current.Rows)), LoadedAt: current.LoadedAt}
		copy(next.Rows, current.Rows)
		next.Rows[idx].Checked = checked

		if s.view.CompareAndSwap(current, next) {
			s.notify(next)
			return true
		}
	}
}

func (s *Synchronizer) publish(v *View) {
	s.view.Store(v)
	s.notify(v)
}

func (s *Synchronizer) notify(v *View) {
	if s.onChange != nil {
		s.onChange(*v)
	}
}

func (s *Synchronizer) logFailure(msg string, err error, fields ...zap.Field) {
	var fetchErr *client.FetchError
	if errors.As(err, &fetchErr) {
		fields = append(fields, zap.Int("status", fetchErr.StatusCode), zap.String("body", fetchErr.Body))
	}
	s.logger.Error(msg, append(fields, zap.Error(err))...)
}
