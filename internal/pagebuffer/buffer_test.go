//go:build linux || darwin

package pagebuffer

import (
	"bytes"
	"testing"
)

func TestCommitThenRead(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte{0x90, 0x90, 0xC3}
	if err := b.Commit(0, data); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := b.Reader()
	defer r.Close()
	if !bytes.Equal(r.Bytes(), data) {
		t.Errorf("Bytes() = %v, want %v", r.Bytes(), data)
	}
}

func TestCommitGrowsAcrossPage(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := bytes.Repeat([]byte{0x90}, pageSize-1)
	if err := b.Commit(0, first); err != nil {
		t.Fatalf("Commit first: %v", err)
	}
	second := []byte{0xAA, 0xBB, 0xCC}
	if err := b.Commit(uint64(len(first)), second); err != nil {
		t.Fatalf("Commit second: %v", err)
	}

	r := b.Reader()
	defer r.Close()
	if got := r.Bytes(); len(got) != len(first)+len(second) {
		t.Fatalf("committed length = %d, want %d", len(got), len(first)+len(second))
	} else if !bytes.Equal(got[len(first):], second) {
		t.Errorf("tail after grow = %v, want %v", got[len(first):], second)
	}
	if b.Cap() < pageSize*2 {
		t.Errorf("Cap() = %d, want at least two pages after growth", b.Cap())
	}
}

func TestEmptyCommitIsNoop(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Commit(0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := b.Commit(3, nil); err != nil {
		t.Fatalf("Commit nil: %v", err)
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3 after no-op commit", b.Len())
	}
}

func TestAlterRoundTrip(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Commit(0, []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	session := b.BeginAlter()
	copy(session.Bytes(), []byte{0x90, 0x90, 0x90, 0x90})
	session.End()

	r := b.Reader()
	defer r.Close()
	if !bytes.Equal(r.Bytes(), []byte{0x90, 0x90, 0x90, 0x90}) {
		t.Errorf("after alter, Bytes() = %v, want all 0x90", r.Bytes())
	}
}

func TestTryAcquireExclusiveFailsWithLiveReader(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := b.Reader()
	defer r.Close()

	if b.TryAcquireExclusive() {
		b.ReleaseExclusive()
		t.Fatal("TryAcquireExclusive should fail while a reader is live")
	}
}
