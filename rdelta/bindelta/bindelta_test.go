package bindelta

import (
	"bytes"
	"testing"
)

func TestEncodeApplyRoundTrip(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog, again and again")
	target := []byte("the quick brown fox leaps over the lazy dog, again and again and again")

	delta := Encode(base, target)
	got, err := Apply(base, delta)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Fatalf("round trip mismatch:\n got=%q\nwant=%q", got, target)
	}
}

func TestEncodeApplyEmptyBase(t *testing.T) {
	base := []byte{}
	target := []byte("brand new content with no shared base")

	delta := Encode(base, target)
	got, err := Apply(base, delta)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Fatalf("round trip mismatch:\n got=%q\nwant=%q", got, target)
	}
}

func TestEncodeApplyIdentical(t *testing.T) {
	base := []byte("unchanged content of reasonable length to form an anchor match")
	delta := Encode(base, base)
	got, err := Apply(base, delta)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, base) {
		t.Fatalf("round trip mismatch:\n got=%q\nwant=%q", got, base)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	base := []byte("alpha beta gamma delta epsilon zeta eta theta")
	target := []byte("alpha beta GAMMA delta epsilon zeta ETA theta iota")

	reverse := Invert(base, target)
	got, err := Apply(target, reverse)
	if err != nil {
		t.Fatalf("Apply reverse: %v", err)
	}
	if !bytes.Equal(got, base) {
		t.Fatalf("inverted round trip mismatch:\n got=%q\nwant=%q", got, base)
	}
}

func TestApplyRejectsOutOfRangeCopy(t *testing.T) {
	base := []byte("short base")
	delta := []byte{opCopy, 0, 100}
	if _, err := Apply(base, delta); err == nil {
		t.Fatalf("expected an error for an out-of-range copy, got nil")
	}
}
