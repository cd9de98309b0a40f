package worker

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/collabwsd/wsd/internal/engine"
	"github.com/collabwsd/wsd/internal/session"
)

type fakeSocket struct {
	texts  []string
	closed bool
}

func (f *fakeSocket) WriteText(line string) error {
	f.texts = append(f.texts, line)
	return nil
}
func (f *fakeSocket) WriteBinary(line string, payload []byte) error { return nil }
func (f *fakeSocket) Close() error                                  { f.closed = true; return nil }
func (f *fakeSocket) ShutdownReceive() error                        { return nil }

type fakeDialer struct {
	sockets map[string]*fakeSocket
}

func (d *fakeDialer) Dial(ctx context.Context, sessionID string) (session.Socket, error) {
	sock := &fakeSocket{}
	if d.sockets == nil {
		d.sockets = map[string]*fakeSocket{}
	}
	d.sockets[sessionID] = sock
	return sock, nil
}

func TestDocumentOnLoadRegistersCallbackAndCountsView(t *testing.T) {
	eng := engine.NewNullEngine()
	doc := NewDocument("file:///tmp/a.odt", "jail1", eng, false, nil)
	sock := &fakeSocket{}
	sess := session.New("1", session.InWorker, sock)
	runner := newSessionRunner(sess, doc, nil)
	doc.AddRunner(runner)

	engDoc, err := doc.OnLoad(context.Background(), runner)
	if err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if engDoc == nil {
		t.Fatal("expected non-nil engine document")
	}
	if doc.ClientViews() != 1 {
		t.Fatalf("expected 1 client view, got %d", doc.ClientViews())
	}
}

func TestDocumentOnLoadWithViewCallbacks(t *testing.T) {
	eng := engine.NewNullEngine()
	doc := NewDocument("file:///tmp/a.odt", "jail1", eng, true, nil)
	sock := &fakeSocket{}
	sess := session.New("42", session.InWorker, sock)
	runner := newSessionRunner(sess, doc, nil)
	doc.AddRunner(runner)

	if _, err := doc.OnLoad(context.Background(), runner); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if runner.viewID == 0 {
		t.Fatal("expected a view id to be assigned when view callbacks are enabled")
	}

	nd := doc.EngineDocument().(*engine.NullDocument)
	nd.FireViewCallback(runner.numericID(), 1, "status: view-specific")
	if len(sock.texts) != 1 || sock.texts[0] != "status: view-specific" {
		t.Fatalf("expected view callback forwarded to session, got %v", sock.texts)
	}
}

func TestDocumentCallbackFansOutToAllSessions(t *testing.T) {
	eng := engine.NewNullEngine()
	doc := NewDocument("file:///tmp/a.odt", "jail1", eng, false, nil)

	sock1 := &fakeSocket{}
	sess1 := session.New("1", session.InWorker, sock1)
	runner1 := newSessionRunner(sess1, doc, nil)
	doc.AddRunner(runner1)

	sock2 := &fakeSocket{}
	sess2 := session.New("2", session.InWorker, sock2)
	runner2 := newSessionRunner(sess2, doc, nil)
	doc.AddRunner(runner2)

	if _, err := doc.OnLoad(context.Background(), runner1); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}

	nd := doc.EngineDocument().(*engine.NullDocument)
	nd.FireDocumentCallback(1, "invalidatecursor:")

	if len(sock1.texts) != 1 || len(sock2.texts) != 1 {
		t.Fatalf("expected document callback fan-out to both sessions, got %v %v", sock1.texts, sock2.texts)
	}
}

func TestDocumentCanDiscard(t *testing.T) {
	eng := engine.NewNullEngine()
	doc := NewDocument("file:///tmp/a.odt", "jail1", eng, false, nil)

	if !doc.CanDiscard(0) {
		t.Fatal("expected empty, idle document to be discardable with zero timeout")
	}
	if doc.CanDiscard(time.Hour) {
		t.Fatal("expected fresh document to not be discardable with a long timeout")
	}
}

func TestHostThreadEnforcesSingleDocumentPerWorker(t *testing.T) {
	eng := engine.NewNullEngine()
	dialer := &fakeDialer{}
	h := NewHost(eng, dialer, Config{JailID: "jail1"}, nil)

	if err := h.Thread("1", "file:///tmp/a.odt"); err != nil {
		t.Fatalf("first thread: %v", err)
	}
	if err := h.Thread("2", "file:///tmp/b.odt"); err == nil {
		t.Fatal("expected second thread with a different URL to be rejected")
	}
}

func TestHostThreadSendsChildHandshake(t *testing.T) {
	eng := engine.NewNullEngine()
	dialer := &fakeDialer{}
	h := NewHost(eng, dialer, Config{JailID: "jail7"}, nil)

	if err := h.Thread("99", "file:///tmp/a.odt"); err != nil {
		t.Fatalf("Thread: %v", err)
	}
	sock := dialer.sockets["99"]
	if sock == nil || len(sock.texts) != 1 {
		t.Fatalf("expected one handshake frame sent, got %v", sock)
	}
	want := fmt.Sprintf("child jail7 99 %d", os.Getpid())
	if sock.texts[0] != want {
		t.Fatalf("got %q, want %q", sock.texts[0], want)
	}
}

func TestHostSweepAndQueryEmptyInitially(t *testing.T) {
	eng := engine.NewNullEngine()
	h := NewHost(eng, &fakeDialer{}, Config{}, nil)
	url, empty := h.SweepAndQuery()
	if !empty || url != "" {
		t.Fatalf("expected empty worker, got url=%q empty=%v", url, empty)
	}
}
