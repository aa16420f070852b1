package job

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildHeaders(offsets ...int64) *bytes.Reader {
	buf := make([]byte, 8*len(offsets))
	for i, o := range offsets {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(o))
	}
	return bytes.NewReader(buf)
}

func TestReadOffset_ReturnsOffsetAtIndex(t *testing.T) {
	r := buildHeaders(0, 128, 4096)
	got, err := ReadOffset(r, 1)
	if err != nil {
		t.Fatalf("ReadOffset failed: %v", err)
	}
	if got != 128 {
		t.Errorf("ReadOffset(1) = %v, want 128", got)
	}
}

func TestReadOffset_OutOfRangeIsIOError(t *testing.T) {
	r := buildHeaders(0, 128)
	if _, err := ReadOffset(r, 5); err == nil {
		t.Error("expected an error reading past the end of headers.bin")
	}
}

func TestNumOffsets(t *testing.T) {
	if got := NumOffsets(24); got != 3 {
		t.Errorf("NumOffsets(24) = %v, want 3", got)
	}
}
