package protocol

import "testing"

func TestTokenize(t *testing.T) {
	toks := Tokenize("load url=file:///tmp/a.odt  jail=foo")
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %v", len(toks), toks)
	}
	if toks[0] != "load" || toks[1] != "url=file:///tmp/a.odt" || toks[2] != "jail=foo" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestGetStrGetInt(t *testing.T) {
	v, ok := GetStr("url=file:///tmp/a.odt", "url")
	if !ok || v != "file:///tmp/a.odt" {
		t.Fatalf("GetStr failed: %v %v", v, ok)
	}
	n, ok := GetInt("part=3", "part")
	if !ok || n != 3 {
		t.Fatalf("GetInt failed: %v %v", n, ok)
	}
	if _, ok := GetInt("part=x", "part"); ok {
		t.Fatalf("GetInt should fail on non-numeric value")
	}
	if _, ok := GetStr("part=3", "other"); ok {
		t.Fatalf("GetStr should fail on mismatched name")
	}
}

func TestParseFrameWithBinary(t *testing.T) {
	buf := append([]byte("paste mimetype=text/plain\n"), []byte("hello world")...)
	f := ParseFrame(buf)
	if f.Command() != "paste" {
		t.Fatalf("expected command paste, got %q", f.Command())
	}
	if !f.HasBinary() {
		t.Fatalf("expected binary tail")
	}
	if string(f.Binary) != "hello world" {
		t.Fatalf("unexpected binary tail: %q", f.Binary)
	}
}

func TestParseFrameNoBinary(t *testing.T) {
	f := ParseFrame([]byte("status"))
	if f.HasBinary() {
		t.Fatalf("expected no binary tail")
	}
	if f.Command() != "status" {
		t.Fatalf("unexpected command: %q", f.Command())
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("0.1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Matches() {
		t.Fatalf("expected version to match server version")
	}

	v2, err := ParseVersion("9.9.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v2.Matches() {
		t.Fatalf("expected mismatched major to not match")
	}

	if _, err := ParseVersion("garbage"); err == nil {
		t.Fatalf("expected error parsing garbage version")
	}
}

func TestFrameErrorWire(t *testing.T) {
	e := &FrameError{Cmd: "load", Kind: "docalreadyloaded"}
	if e.Wire() != "error: cmd=load kind=docalreadyloaded" {
		t.Fatalf("unexpected wire form: %q", e.Wire())
	}
}

func TestIsAllowedCommand(t *testing.T) {
	if !IsAllowedCommand("status") {
		t.Fatalf("expected status to be allowed")
	}
	if IsAllowedCommand("load") {
		t.Fatalf("load is handled separately, not part of the allow-list")
	}
	if IsAllowedCommand("rm -rf") {
		t.Fatalf("unexpected command allowed")
	}
}
