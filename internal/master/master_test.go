package master

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/collabwsd/wsd/internal/broker"
	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

type fakeSocket struct {
	texts    []string
	binaries []struct {
		line string
		data []byte
	}
	closed bool
}

func (f *fakeSocket) WriteText(line string) error {
	f.texts = append(f.texts, line)
	return nil
}

func (f *fakeSocket) WriteBinary(line string, payload []byte) error {
	f.binaries = append(f.binaries, struct {
		line string
		data []byte
	}{line, payload})
	return nil
}

func (f *fakeSocket) Close() error          { f.closed = true; return nil }
func (f *fakeSocket) ShutdownReceive() error { return nil }

func newRendezvousForTest(t *testing.T) (*Rendezvous, *AvailableTable) {
	t.Helper()
	pr, pw := io.Pipe()
	go io.Copy(io.Discard, pr)
	bc := broker.NewMasterClient(broker.NewWriter(pw))
	table := NewAvailableTable()
	return NewRendezvous(table, bc), table
}

func TestHandshakeVersionMatch(t *testing.T) {
	rt := NewRouter(NewAvailableTable(), mustRendezvous(t), "/jail", nil)
	sock := &fakeSocket{}
	sess := session.New("c1", session.ToClient, sock)
	rt.AddClient(sess)

	frame := protocol.ParseFrame([]byte("loolclient 0.1.0"))
	if err := rt.HandleInput(context.Background(), sess, frame); err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if len(sock.texts) != 1 || sock.texts[0] != "loolserver "+protocol.ServerVersionString() {
		t.Fatalf("unexpected handshake response: %v", sock.texts)
	}
}

func TestHandshakeVersionMismatchCloses(t *testing.T) {
	rt := NewRouter(NewAvailableTable(), mustRendezvous(t), "/jail", nil)
	sock := &fakeSocket{}
	sess := session.New("c1", session.ToClient, sock)

	frame := protocol.ParseFrame([]byte("loolclient 9.9.0"))
	_ = rt.HandleInput(context.Background(), sess, frame)
	if !sock.closed {
		t.Fatal("expected socket closed on version mismatch")
	}
}

func TestCommandBeforeLoadIsNoDocLoaded(t *testing.T) {
	rt := NewRouter(NewAvailableTable(), mustRendezvous(t), "/jail", nil)
	sock := &fakeSocket{}
	sess := session.New("c1", session.ToClient, sock)

	_ = rt.HandleInput(context.Background(), sess, protocol.ParseFrame([]byte("loolclient 0.1.0")))
	sock.texts = nil

	_ = rt.HandleInput(context.Background(), sess, protocol.ParseFrame([]byte("status")))
	if len(sock.texts) != 1 || sock.texts[0] != "error: cmd=status kind=nodocloaded" {
		t.Fatalf("expected nodocloaded error, got %v", sock.texts)
	}
}

func TestPrisonerHandshakeInsertsAvailable(t *testing.T) {
	available := NewAvailableTable()
	rt := NewRouter(available, mustRendezvous(t), "/jail", nil)
	sock := &fakeSocket{}
	sess := session.New("tmp", session.ToPrisoner, sock)

	frame := protocol.ParseFrame([]byte("child jail1 42 9999"))
	if err := rt.HandleInput(context.Background(), sess, frame); err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if sess.ID != "42" {
		t.Fatalf("expected session id rewritten to 42, got %q", sess.ID)
	}

	got, ok := available.waitTimeout("42", 10*time.Millisecond)
	if !ok || got != sess {
		t.Fatalf("expected prisoner session registered in available table")
	}
}

func TestSnoopTileCachesAndForwards(t *testing.T) {
	rt := NewRouter(NewAvailableTable(), mustRendezvous(t), "/jail", nil)

	clientSock := &fakeSocket{}
	clientSess := session.New("c1", session.ToClient, clientSock)
	clientSess.SetDocID("file:///tmp/a.odt")

	prisonerSock := &fakeSocket{}
	prisonerSess := session.New("42", session.ToPrisoner, prisonerSock)
	prisonerSess.SetDocID("jail1")

	session.Pair(clientSess, prisonerSess)

	line := "tile: part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=3840 tileheight=3840"
	buf := append([]byte(line+"\n"), []byte("tile-bytes")...)
	frame := protocol.ParseFrame(buf)

	if err := rt.HandleInput(context.Background(), prisonerSess, frame); err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if len(clientSock.binaries) != 1 {
		t.Fatalf("expected tile forwarded to client, got %v", clientSock.binaries)
	}

	c := rt.cacheFor("file:///tmp/a.odt")
	key, err := parseTileKey("tile", frame.Tokens)
	if err != nil {
		t.Fatal(err)
	}
	data, ok, _ := c.LookupTile(key)
	if !ok || string(data) != "tile-bytes" {
		t.Fatalf("expected tile cached, ok=%v data=%q", ok, data)
	}
}

func TestTileCacheHitShortCircuits(t *testing.T) {
	rt := NewRouter(NewAvailableTable(), mustRendezvous(t), "/jail", nil)

	clientSock := &fakeSocket{}
	clientSess := session.New("c1", session.ToClient, clientSock)
	_ = rt.HandleInput(context.Background(), clientSess, protocol.ParseFrame([]byte("loolclient 0.1.0")))

	st := rt.stateFor(clientSess.ID)
	st.docURL = "file:///tmp/a.odt"
	st.cache = rt.cacheFor(st.docURL)
	clientSess.SetDocID(st.docURL)

	key, err := parseTileKey("tile", protocol.Tokenize("tile part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=3840 tileheight=3840"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.cache.SaveTile(key, []byte("cached-bytes")); err != nil {
		t.Fatal(err)
	}

	clientSock.binaries = nil
	frame := protocol.ParseFrame([]byte("tile part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=3840 tileheight=3840"))
	if err := rt.HandleInput(context.Background(), clientSess, frame); err != nil {
		t.Fatal(err)
	}
	if len(clientSock.binaries) != 1 || string(clientSock.binaries[0].data) != "cached-bytes" {
		t.Fatalf("expected cache hit served directly, got %v", clientSock.binaries)
	}
}

func mustRendezvous(t *testing.T) *Rendezvous {
	t.Helper()
	r, _ := newRendezvousForTest(t)
	return r
}
