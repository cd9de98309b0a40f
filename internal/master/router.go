// Package master implements the master process's per-client and
// per-worker session router: protocol handshake, child-acquisition
// rendezvous, and the snoop-and-cache interception described in spec
// §4.D.
package master

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/cache"
	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

// clientState is router-local bookkeeping for a ToClient session,
// kept outside of session.Session since it is specific to the
// master's router rather than to the generic Session type.
type clientState struct {
	handshaked bool
	docURL     string
	jailRoot   string
	cache      *cache.Cache
}

// Router is the single `handleInput` entry point parameterized by
// session kind, per spec §4.D.
type Router struct {
	clients   *session.Registry
	prisoners *session.Registry
	available *AvailableTable
	rendez    *Rendezvous
	jailRoot  string
	log       *zap.Logger

	mu      sync.Mutex
	clState map[string]*clientState
	caches  map[string]*cache.Cache // keyed by document URL, shared across sessions
}

// NewRouter constructs a Router. jailRoot is the directory saveas:
// responses are re-rooted under (spec §4.D.3).
func NewRouter(available *AvailableTable, rendez *Rendezvous, jailRoot string, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		clients:   session.NewRegistry(),
		prisoners: session.NewRegistry(),
		available: available,
		rendez:    rendez,
		jailRoot:  jailRoot,
		log:       log,
		clState:   make(map[string]*clientState),
		caches:    make(map[string]*cache.Cache),
	}
}

// Clients returns the ToClient session registry.
func (rt *Router) Clients() *session.Registry { return rt.clients }

// Prisoners returns the ToPrisoner session registry.
func (rt *Router) Prisoners() *session.Registry { return rt.prisoners }

func (rt *Router) cacheFor(url string) *cache.Cache {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	c, ok := rt.caches[url]
	if !ok {
		c = cache.New(cache.NewMemStore(), rt.log)
		rt.caches[url] = c
	}
	return c
}

func (rt *Router) stateFor(sessionID string) *clientState {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	st, ok := rt.clState[sessionID]
	if !ok {
		st = &clientState{jailRoot: rt.jailRoot}
		rt.clState[sessionID] = st
	}
	return st
}

func (rt *Router) dropState(sessionID string) {
	rt.mu.Lock()
	delete(rt.clState, sessionID)
	rt.mu.Unlock()
}

// AddClient registers a newly accepted external client WebSocket.
func (rt *Router) AddClient(sess *session.Session) {
	rt.clients.Add(sess)
}

// HandleInput is the router's single entry point, dispatched by
// sess.Kind, matching spec §4.D's "written as a single function
// parameterized by the session's kind."
func (rt *Router) HandleInput(ctx context.Context, sess *session.Session, frame protocol.Frame) error {
	switch sess.Kind {
	case session.ToClient:
		return rt.handleClient(ctx, sess, frame)
	case session.ToPrisoner:
		return rt.handlePrisoner(ctx, sess, frame)
	default:
		return fmt.Errorf("master: HandleInput called with unsupported session kind %s", sess.Kind)
	}
}

func (rt *Router) handleClient(ctx context.Context, sess *session.Session, frame protocol.Frame) error {
	st := rt.stateFor(sess.ID)

	if !st.handshaked {
		return rt.handshakeClient(sess, st, frame)
	}

	cmd := frame.Command()
	if cmd == "load" {
		return rt.handleLoad(ctx, sess, st, frame)
	}

	if !st.handshakedDoc() {
		return sess.SendText(protocol.NoDocLoadedError(cmd).Wire())
	}

	if !protocol.IsAllowedCommand(cmd) {
		return sess.SendText(protocol.UnknownCommandError(cmd).Wire())
	}

	if handled, err := rt.tryCacheFirst(sess, st, frame); handled || err != nil {
		return err
	}

	if cmd == "disconnect" {
		defer rt.teardownClient(sess, st)
	}

	err := rt.forwardToPeer(sess, frame)
	if err == nil && cmd == "uno" && strings.Contains(frame.Line, ".uno:Save") {
		st.cache.DocumentSaved()
	}
	return err
}

// handshakedDoc reports whether this client session has sent a load
// with a url. It does not check whether a peer worker session exists.
func (st *clientState) handshakedDoc() bool {
	return st.docURL != ""
}

func (rt *Router) handshakeClient(sess *session.Session, st *clientState, frame protocol.Frame) error {
	tokens := frame.Tokens
	if len(tokens) < 2 || tokens[0] != "loolclient" {
		return sess.SendText(protocol.BadVersionError().Wire())
	}
	v, err := protocol.ParseVersion(tokens[1])
	if err != nil || !v.Matches() {
		_ = sess.SendText(protocol.BadVersionError().Wire())
		return sess.Close()
	}
	st.handshaked = true
	return sess.SendText("loolserver " + protocol.ServerVersionString())
}

func (rt *Router) handleLoad(ctx context.Context, sess *session.Session, st *clientState, frame protocol.Frame) error {
	if st.handshakedDoc() {
		return sess.SendText(protocol.DocAlreadyLoadedError().Wire())
	}
	url, ok := firstTokenValue(frame.Tokens, "url")
	if !ok {
		return sess.SendText(protocol.URIInvalidError().Wire())
	}

	st.docURL = url
	st.cache = rt.cacheFor(url)
	sess.SetDocID(url)
	sess.SetLoadOptions(frame.Line)

	worker, err := rt.rendez.Acquire(sess.ID, url)
	if err != nil {
		_ = sess.SendText((&protocol.FrameError{Cmd: "load", Kind: "fatal"}).Wire())
		return sess.Close()
	}

	session.Pair(sess, worker)
	rt.prisoners.Add(worker)
	return worker.SendText(frame.Line)
}

func firstTokenValue(tokens []string, name string) (string, bool) {
	for _, t := range tokens[1:] {
		if v, ok := protocol.GetStr(t, name); ok {
			return v, true
		}
	}
	return "", false
}

// forwardToPeer forwards a frame verbatim to sess's paired session, if
// any. A session without a peer drops the frame with nodocloaded,
// matching the "no worker yet" case.
func (rt *Router) forwardToPeer(sess *session.Session, frame protocol.Frame) error {
	peer := sess.Peer()
	if peer == nil {
		return sess.SendText(protocol.NoDocLoadedError(frame.Command()).Wire())
	}
	if frame.HasBinary() {
		return peer.SendBinary(frame.Line, frame.Binary)
	}
	return peer.SendText(frame.Line)
}

// teardownClient tears down sess and its peer, per spec §4.D.6's
// disconnect hook. The "disconnect" frame itself was already forwarded
// to the peer by handleClient's normal forwardToPeer call, so no
// synthesized notification is sent here.
func (rt *Router) teardownClient(sess *session.Session, st *clientState) {
	rt.teardownPeerSessions(sess)
	_ = sess.Stop(false)
}

// teardownPeerSessions unregisters sess and its peer (if any) from
// their registries and clears the pairing, per spec §3's invariant
// that a paired (C, W) is destroyed atomically. It does not notify the
// peer; callers that haven't already forwarded a disconnect frame
// should use TeardownAbrupt instead.
func (rt *Router) teardownPeerSessions(sess *session.Session) {
	if peer := sess.Peer(); peer != nil {
		_ = peer.Stop(true)
		rt.removeFromRegistry(peer)
		session.Unpair(sess, peer)
	}
	rt.removeFromRegistry(sess)
}

// removeFromRegistry drops sess from the registry (and, for a client,
// the router-local state map) matching its kind.
func (rt *Router) removeFromRegistry(sess *session.Session) {
	switch sess.Kind {
	case session.ToClient:
		rt.clients.Remove(sess.ID)
		rt.dropState(sess.ID)
	case session.ToPrisoner:
		rt.prisoners.Remove(sess.ID)
	}
}

// TeardownAbrupt tears down sess and its peer when sess's transport
// closed without an explicit "disconnect" frame — a WebSocket read
// error, per spec §7's "WebSocket I/O exceptions ... its peer receives
// a disconnect of equivalent reason." Unlike teardownClient, the peer
// is sent a synthesized disconnect frame since none was forwarded.
func (rt *Router) TeardownAbrupt(sess *session.Session, reason string) {
	if peer := sess.Peer(); peer != nil {
		_ = peer.SendText("disconnect " + reason)
	}
	rt.teardownPeerSessions(sess)
	_ = sess.Stop(true)
}
