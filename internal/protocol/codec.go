// Package protocol implements the line-oriented text command frames
// exchanged over the client and worker WebSockets. It is pure: parsing
// and serialization only, no I/O.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ProtocolMajor and ProtocolMinor are the server's supported version pair.
// A client's loolclient handshake must match both to be accepted.
const (
	ProtocolMajor = 0
	ProtocolMinor = 1
	ProtocolPatch = 0
)

// FrameError is returned when a frame fails to parse. Cmd/Kind map
// directly onto the wire form "error: cmd=<Cmd> kind=<Kind>".
type FrameError struct {
	Cmd  string
	Kind string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("cmd=%s kind=%s", e.Cmd, e.Kind)
}

// Wire renders the error in the wire format expected by clients.
func (e *FrameError) Wire() string {
	return "error: cmd=" + e.Cmd + " kind=" + e.Kind
}

func syntaxErr(cmd string) error  { return &FrameError{Cmd: cmd, Kind: "syntax"} }
func invalidErr(cmd string) error { return &FrameError{Cmd: cmd, Kind: "invalid"} }

// Frame is one parsed WebSocket payload: a command line, optionally
// followed by an opaque binary tail (paste, tile:, renderfont:,
// invalidatetiles: responses carry one).
type Frame struct {
	Line   string
	Tokens []string
	Binary []byte // nil when the frame is single-line
}

// HasBinary reports whether the frame carries a binary tail.
func (f Frame) HasBinary() bool { return f.Binary != nil }

// Command is the first whitespace-delimited token of the line, i.e. the
// frame's command name (without any trailing colon stripped).
func (f Frame) Command() string {
	if len(f.Tokens) == 0 {
		return ""
	}
	return f.Tokens[0]
}

// ParseFrame splits a raw WebSocket payload into its first line and an
// optional binary tail, then tokenizes the line.
func ParseFrame(buf []byte) Frame {
	line := FirstLine(buf)
	tail := buf[len(line):]
	tail = trimLeadingNewline(tail)

	f := Frame{
		Line:   line,
		Tokens: Tokenize(line),
	}
	if len(tail) > 0 {
		f.Binary = tail
	}
	return f
}

func trimLeadingNewline(b []byte) []byte {
	if len(b) > 0 && b[0] == '\n' {
		return b[1:]
	}
	return b
}

// FirstLine returns the prefix of buf up to (not including) the first
// '\n', or the whole buffer if it contains none.
func FirstLine(buf []byte) string {
	if idx := indexByte(buf, '\n'); idx >= 0 {
		return string(buf[:idx])
	}
	return string(buf)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Tokenize splits line on whitespace, dropping empty tokens and
// trimming each survivor.
func Tokenize(line string) []string {
	fields := strings.Fields(line)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.TrimSpace(f)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// GetStr requires tok to be of the form name=value and returns value.
func GetStr(tok, name string) (string, bool) {
	prefix := name + "="
	if !strings.HasPrefix(tok, prefix) {
		return "", false
	}
	return tok[len(prefix):], true
}

// GetInt requires tok to be of the form name=value with value parsing
// as a base-10 integer.
func GetInt(tok, name string) (int, bool) {
	s, ok := GetStr(tok, name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RequireStr is GetStr with a syntax FrameError on failure, for callers
// that want to fail the whole frame uniformly.
func RequireStr(cmd, tok, name string) (string, error) {
	v, ok := GetStr(tok, name)
	if !ok {
		return "", syntaxErr(cmd)
	}
	return v, nil
}

// RequireInt is GetInt with a syntax FrameError on failure.
func RequireInt(cmd, tok, name string) (int, error) {
	v, ok := GetInt(tok, name)
	if !ok {
		return 0, syntaxErr(cmd)
	}
	return v, nil
}

// Version is a parsed major.minor.patch protocol version.
type Version struct {
	Major, Minor, Patch int
}

// ParseVersion parses "major.minor.patch". It does not itself check
// against the server's supported pair; callers compare Major/Minor.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, syntaxErr("loolclient")
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, syntaxErr("loolclient")
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Matches reports whether v's major/minor match the server's supported
// protocol pair (patch is not compared).
func (v Version) Matches() bool {
	return v.Major == ProtocolMajor && v.Minor == ProtocolMinor
}

// ServerVersionString is the string sent back in "loolserver <version>".
func ServerVersionString() string {
	return fmt.Sprintf("%d.%d.%d", ProtocolMajor, ProtocolMinor, ProtocolPatch)
}

// BadVersionError is the FrameError for a loolclient handshake whose
// major/minor doesn't match the server.
func BadVersionError() *FrameError {
	return &FrameError{Cmd: "loolclient", Kind: "badversion"}
}

// UnknownCommandError reports a command name outside the allow-list.
func UnknownCommandError(cmd string) *FrameError {
	return &FrameError{Cmd: cmd, Kind: "unknown"}
}

// NoDocLoadedError reports a command requiring a loaded document when
// none has been loaded on the session yet.
func NoDocLoadedError(cmd string) *FrameError {
	return &FrameError{Cmd: cmd, Kind: "nodocloaded"}
}

// DocAlreadyLoadedError reports a second "load" on a session that
// already holds a document.
func DocAlreadyLoadedError() *FrameError {
	return &FrameError{Cmd: "load", Kind: "docalreadyloaded"}
}

// URIInvalidError reports a "load url=" that failed to parse as a URI.
func URIInvalidError() *FrameError {
	return &FrameError{Cmd: "load", Kind: "uriinvalid"}
}

// SyntaxError and InvalidError are exported constructors so callers in
// other packages can build FrameErrors without reaching into the
// unexported helpers above.
func SyntaxError(cmd string) *FrameError  { return &FrameError{Cmd: cmd, Kind: "syntax"} }
func InvalidError(cmd string) *FrameError { return &FrameError{Cmd: cmd, Kind: "invalid"} }

// allowedCommands is the allow-list from spec §4.D.5. Commands not in
// this set (and not "load" or "loolclient") are rejected as unknown.
var allowedCommands = map[string]bool{
	"canceltiles": true, "clientzoom": true, "clientvisiblearea": true,
	"commandvalues": true, "disconnect": true, "downloadas": true,
	"getchildid": true, "gettextselection": true, "paste": true,
	"insertfile": true, "invalidatetiles": true, "key": true, "mouse": true,
	"partpagerectangles": true, "renderfont": true, "requestloksession": true,
	"resetselection": true, "saveas": true, "selectgraphic": true,
	"selecttext": true, "setclientpart": true, "setpage": true,
	"status": true, "tile": true, "tilecombine": true, "unload": true,
	"uno": true,
}

// IsAllowedCommand reports whether cmd is in the client command
// allow-list (spec §4.D.5). "load" and "loolclient" are handled
// separately by the router and are not part of this set.
func IsAllowedCommand(cmd string) bool {
	return allowedCommands[cmd]
}
