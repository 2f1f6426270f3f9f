package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/syncer"
)

// lineReader hands out input lines one at a time and gives up when ctx ends,
// so a pending read never blocks shutdown.
type lineReader struct {
	src      io.Reader
	once     sync.Once
	lines    chan string
	done     chan struct{}
	finished chan struct{}
	closing  sync.Once
	err      error
}

func newLineReader(src io.Reader) *lineReader {
	return &lineReader{
		src:      src,
		lines:    make(chan string),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (r *lineReader) Next(ctx context.Context) (string, bool, error) {
	r.once.Do(func() { go r.scan() })

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-r.done:
		return "", false, nil
	case line := <-r.lines:
		return line, true, nil
	case <-r.finished:
		return "", false, r.err
	}
}

// Close releases the scanning goroutine; lines it already buffered are dropped.
func (r *lineReader) Close() {
	r.closing.Do(func() { close(r.done) })
}

func (r *lineReader) scan() {
	defer close(r.finished)

	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		select {
		case r.lines <- sc.Text():
		case <-r.done:
			return
		}
	}
	r.err = sc.Err()
}

// linePrompter asks for the new values on the terminal. An empty title or
// end of input cancels; an empty priority keeps the current one.
type linePrompter struct {
	in  *lineReader
	out io.Writer
}

func (p *linePrompter) PromptEdit(ctx context.Context, current syncer.Row) (syncer.EditInput, bool, error) {
	title, ok, err := p.ask(ctx, fmt.Sprintf("Enter new title [%s]: ", current.Title))
	if err != nil || !ok || title == "" {
		return syncer.EditInput{}, false, err
	}

	raw, ok, err := p.ask(ctx, fmt.Sprintf("Enter new priority (Low, Medium, High) [%s]: ", current.Priority))
	if err != nil || !ok {
		return syncer.EditInput{}, false, err
	}

	priority := current.Priority
	if raw != "" {
		priority, _ = model.ParsePriority(raw)
	}
	return syncer.EditInput{Title: title, Priority: priority}, true, nil
}

func (p *linePrompter) ask(ctx context.Context, question string) (string, bool, error) {
	fmt.Fprint(p.out, question)
	line, ok, err := p.in.Next(ctx)
	return strings.TrimSpace(line), ok, err
}
