package ring

import (
	"bytes"
	"testing"
)

func TestOrderAcrossWrap(t *testing.T) {
	r := New(64)
	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}
	var got []byte
	tmp := make([]byte, 5)
	p := src
	for len(got) < N {
		if len(p) > 0 {
			step := 7
			if step > len(p) {
				step = len(p)
			}
			p = p[r.WriteFrom(p[:step]):]
		}
		n := r.ReadInto(tmp)
		got = append(got, tmp[:n]...)
	}
	if !bytes.Equal(got, src) {
		t.Fatal("byte order lost across wrap")
	}
}

func TestWriteRecordAllOrNothing(t *testing.T) {
	r := New(8)
	if !r.WriteRecord([]byte("abcde")) {
		t.Fatal("first record rejected")
	}
	if r.WriteRecord([]byte("fghij")) {
		t.Fatal("oversized record accepted")
	}
	if r.Dropped() != 1 || r.Available() != 5 {
		t.Fatalf("dropped=%d available=%d", r.Dropped(), r.Available())
	}
	buf := make([]byte, 8)
	n := r.ReadInto(buf)
	if string(buf[:n]) != "abcde" {
		t.Fatalf("read %q", buf[:n])
	}
}

func TestReadableEdge(t *testing.T) {
	r := New(8)
	select {
	case <-r.Readable():
		t.Fatal("readable before any write")
	default:
	}
	r.WriteFrom([]byte("x"))
	select {
	case <-r.Readable():
	default:
		t.Fatal("no readable edge")
	}
}

func TestNewRejectsBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(12)
}
