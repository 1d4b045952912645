package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestDefaultHeaderBytes(t *testing.T) {
	want := []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}
	for i := 0; i < 3; i++ {
		if got := DefaultHeader.Bytes(); !bytes.Equal(got, want) {
			t.Fatalf("render %d: got=%v want=%v", i, got, want)
		}
	}
}

func TestProtocolHeaderWriteToSingleWrite(t *testing.T) {
	var w countingWriter
	n, err := NewProtocolHeader(1, 2, 3).WriteTo(&w)
	if err != nil {
		t.Fatalf("write header: %v", err)
	}
	if n != ProtocolHeaderLen || w.writes != 1 {
		t.Fatalf("unexpected write shape n=%d writes=%d", n, w.writes)
	}
	if !bytes.Equal(w.buf.Bytes(), []byte{'A', 'M', 'Q', 'P', 0, 1, 2, 3}) {
		t.Fatalf("unexpected bytes: %v", w.buf.Bytes())
	}
}

func TestAppendToKeepsPrefix(t *testing.T) {
	dst := []byte{0xAA, 0xBB}
	got := NewProtocolHeader(0, 9, 1).AppendTo(dst)
	want := []byte{0xAA, 0xBB, 'A', 'M', 'Q', 'P', 0, 0, 9, 1}
	if !bytes.Equal(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestBytesDoesNotAlias(t *testing.T) {
	b := DefaultHeader.Bytes()
	b[0] = 'X'
	if DefaultHeader.Bytes()[0] != 'A' {
		t.Fatalf("default header mutated through Bytes")
	}
}

func TestReadProtocolHeaderRoundTrip(t *testing.T) {
	got, err := ReadProtocolHeader(bytes.NewReader(DefaultHeader.Bytes()))
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if got != DefaultHeader {
		t.Fatalf("header mismatch: got=%s want=%s", got, DefaultHeader)
	}
	if err := Supports(got); err != nil {
		t.Fatalf("supports: %v", err)
	}
}

func TestReadProtocolHeaderRejectsBadID(t *testing.T) {
	_, err := ReadProtocolHeader(bytes.NewReader([]byte{'H', 'T', 'T', 'P', 0, 0, 9, 1}))
	if !errors.Is(err, ErrInvalidProtocolHeader) {
		t.Fatalf("expected ErrInvalidProtocolHeader, got %v", err)
	}
}

func TestReadProtocolHeaderRejectsSeparator(t *testing.T) {
	_, err := ReadProtocolHeader(bytes.NewReader([]byte{'A', 'M', 'Q', 'P', 1, 0, 9, 1}))
	if !errors.Is(err, ErrInvalidProtocolHeader) {
		t.Fatalf("expected ErrInvalidProtocolHeader, got %v", err)
	}
}

func TestReadProtocolHeaderTruncated(t *testing.T) {
	_, err := ReadProtocolHeader(bytes.NewReader([]byte{'A', 'M', 'Q'}))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestSupportsRejectsOtherVersion(t *testing.T) {
	if err := Supports(NewProtocolHeader(0, 10, 0)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

type countingWriter struct {
	buf    bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.buf.Write(p)
}
