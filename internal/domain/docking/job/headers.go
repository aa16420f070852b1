package job

import (
	"encoding/binary"
	"io"

	"github.com/turtacn/idock-worker/pkg/errors"
)

// offsetWidth is the byte width of one headers.bin entry: a native size_t
// in the original C++ (8 bytes on every platform the job queue targets).
const offsetWidth = 8

// ReadOffset reads the byte offset of ligand index idx from the
// headers.bin sidecar, addressable via r per SPEC_FULL.md §6.5: "a flat
// array of fixed-width int64 byte offsets into the ligand text". The core
// has no opinion on this format beyond producing one Ligand for any
// idx in [0,N); ReadOffset is the one piece of that contract the job layer
// must itself own, since it is what turns a ligand index into a seek
// position.
func ReadOffset(r io.ReaderAt, idx int64) (int64, error) {
	var buf [offsetWidth]byte
	if _, err := r.ReadAt(buf[:], idx*offsetWidth); err != nil {
		return 0, errors.Wrap(err, errors.CodeIOError, "reading headers.bin offset")
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// NumOffsets returns the number of ligand offsets stored in a headers.bin
// sidecar of the given total byte size.
func NumOffsets(sizeBytes int64) int64 {
	return sizeBytes / offsetWidth
}
