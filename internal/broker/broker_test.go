package broker

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	pr, pw := io.Pipe()
	w := NewWriter(pw)
	r := NewReader(pr)

	go func() {
		_ = w.WriteLine("request 42 file:///tmp/a.odt")
	}()

	select {
	case line := <-r.Lines():
		if line.Command() != "request" {
			t.Fatalf("expected command request, got %q", line.Command())
		}
		if len(line.Tokens) != 3 || line.Tokens[1] != "42" || line.Tokens[2] != "file:///tmp/a.odt" {
			t.Fatalf("unexpected tokens: %v", line.Tokens)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
	}
	r.Stop()
}

func TestMasterClientRequestChild(t *testing.T) {
	pr, pw := io.Pipe()
	client := NewMasterClient(NewWriter(pw))
	r := NewReader(pr)
	defer r.Stop()

	go func() {
		_ = client.RequestChild("42", "file:///tmp/a.odt")
	}()

	select {
	case line := <-r.Lines():
		if line.Raw != "request 42 file:///tmp/a.odt" {
			t.Fatalf("unexpected line: %q", line.Raw)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for request line")
	}
}

type fakeHandler struct {
	queryURL   string
	queryEmpty bool
	threadErr  error
	threaded   []string
}

func (f *fakeHandler) SweepAndQuery() (string, bool) {
	return f.queryURL, f.queryEmpty
}

func (f *fakeHandler) Thread(sessionID, url string) error {
	f.threaded = append(f.threaded, sessionID+" "+url)
	return f.threadErr
}

func TestWorkerClientQueryEmpty(t *testing.T) {
	supToWorker, supWriteEnd := io.Pipe()
	workerReadEnd, workerToSup := io.Pipe()

	h := &fakeHandler{queryEmpty: true}
	c := NewWorkerClient(1234, NewReader(supToWorker), NewWriter(workerToSup), h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	go func() { _, _ = supWriteEnd.Write([]byte("query url\r\n")) }()

	respReader := NewReader(workerReadEnd)
	select {
	case line := <-respReader.Lines():
		if line.Raw != "1234 empty" {
			t.Fatalf("expected '1234 empty', got %q", line.Raw)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestWorkerClientQueryNonEmpty(t *testing.T) {
	supToWorker, supWriteEnd := io.Pipe()
	workerReadEnd, workerToSup := io.Pipe()

	h := &fakeHandler{queryEmpty: false, queryURL: "file:///tmp/a.odt"}
	c := NewWorkerClient(99, NewReader(supToWorker), NewWriter(workerToSup), h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	go func() { _, _ = supWriteEnd.Write([]byte("query url\r\n")) }()

	respReader := NewReader(workerReadEnd)
	select {
	case line := <-respReader.Lines():
		if line.Raw != "99 file:///tmp/a.odt" {
			t.Fatalf("unexpected response: %q", line.Raw)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestWorkerClientThreadOK(t *testing.T) {
	supToWorker, supWriteEnd := io.Pipe()
	workerReadEnd, workerToSup := io.Pipe()

	h := &fakeHandler{}
	c := NewWorkerClient(7, NewReader(supToWorker), NewWriter(workerToSup), h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	go func() { _, _ = supWriteEnd.Write([]byte("thread 42 file:///tmp/a.odt\r\n")) }()

	respReader := NewReader(workerReadEnd)
	select {
	case line := <-respReader.Lines():
		if line.Raw != "7 ok" {
			t.Fatalf("expected '7 ok', got %q", line.Raw)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}
	if len(h.threaded) != 1 || h.threaded[0] != "42 file:///tmp/a.odt" {
		t.Fatalf("unexpected threaded calls: %v", h.threaded)
	}
}

func TestWorkerClientThreadBadSyntax(t *testing.T) {
	supToWorker, supWriteEnd := io.Pipe()
	workerReadEnd, workerToSup := io.Pipe()

	h := &fakeHandler{}
	c := NewWorkerClient(7, NewReader(supToWorker), NewWriter(workerToSup), h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	go func() { _, _ = supWriteEnd.Write([]byte("thread onlyonearg\r\n")) }()

	respReader := NewReader(workerReadEnd)
	select {
	case line := <-respReader.Lines():
		if line.Raw != "7 bad" {
			t.Fatalf("expected '7 bad', got %q", line.Raw)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}
}
