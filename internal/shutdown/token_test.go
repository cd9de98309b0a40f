package shutdown

import "testing"

func TestStopSetsShouldStopOnly(t *testing.T) {
	tok := New()
	tok.Stop()
	if !tok.ShouldStop() {
		t.Fatal("expected ShouldStop true")
	}
	if tok.Abnormal() {
		t.Fatal("expected Abnormal false after clean Stop")
	}
}

func TestStopAbnormalSetsBoth(t *testing.T) {
	tok := New()
	tok.StopAbnormal()
	if !tok.ShouldStop() || !tok.Abnormal() {
		t.Fatal("expected both flags set after StopAbnormal")
	}
}

func TestFreshTokenIsUnset(t *testing.T) {
	tok := New()
	if tok.ShouldStop() || tok.Abnormal() {
		t.Fatal("expected fresh token unset")
	}
}
