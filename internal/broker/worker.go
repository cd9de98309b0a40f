package broker

import (
	"context"
	"fmt"
)

// Handler is implemented by the worker process to answer supervisor
// requests. internal/worker.Host satisfies this.
type Handler interface {
	// SweepAndQuery discards any document whose canDiscard() is true
	// (spec §4.E, "before answering query url") and reports whether
	// the worker still holds a document afterward.
	SweepAndQuery() (url string, empty bool)
	// Thread creates a session for sessionID bound to url, per spec §4.C.
	Thread(sessionID, url string) error
}

// WorkerClient is the worker process's side of the broker pipe pair:
// it answers "query"/"thread" requests from the supervisor, prefixing
// every response with its own pid.
type WorkerClient struct {
	pid int
	r   *Reader
	w   *Writer
	h   Handler
}

// NewWorkerClient wires r/w (cmd/worker opens both against the
// --pipe file) to h.
func NewWorkerClient(pid int, r *Reader, w *Writer, h Handler) *WorkerClient {
	return &WorkerClient{pid: pid, r: r, w: w, h: h}
}

// Run processes supervisor requests until ctx is cancelled or the pipe
// closes. It returns nil on a clean pipe close, ctx.Err() on
// cancellation, or a wrapped read error otherwise.
func (c *WorkerClient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-c.r.Lines():
			if !ok {
				select {
				case err := <-c.r.Err():
					return err
				default:
					return nil
				}
			}
			if err := c.handle(line); err != nil {
				return err
			}
		}
	}
}

func (c *WorkerClient) handle(line Line) error {
	switch line.Command() {
	case "query":
		url, empty := c.h.SweepAndQuery()
		if empty {
			return c.reply("empty")
		}
		return c.reply(url)
	case "thread":
		if len(line.Tokens) != 3 {
			return c.reply("bad")
		}
		sessionID, url := line.Tokens[1], line.Tokens[2]
		if err := c.h.Thread(sessionID, url); err != nil {
			return c.reply("bad")
		}
		return c.reply("ok")
	default:
		return c.reply("bad")
	}
}

func (c *WorkerClient) reply(msg string) error {
	if err := c.w.WriteLine(fmt.Sprintf("%d %s", c.pid, msg)); err != nil {
		return fmt.Errorf("broker: reply %q: %w", msg, err)
	}
	return nil
}
