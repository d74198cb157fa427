package exporter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/sirupsen/logrus"
)

// Buffer view binding targets.
const (
	targetArrayBuffer        = 34962
	targetElementArrayBuffer = 34963
)

// viewAlignment is the byte alignment of every view inside the binary buffer.
const viewAlignment = 4

// bufferView is a contiguous region of the single output buffer. Its bytes are
// staged in memory or, when spooling is enabled, in a temporary file.
type bufferView struct {
	named

	buffer *buffer
	target int

	byteLength int64
	byteOffset int64

	// byteStride and packedSize are fixed by the first accessor placed in the view.
	byteStride *int
	packedSize *int

	mem       bytes.Buffer
	file      *os.File
	spoolPath string
	err       error
	log       logrus.FieldLogger
}

var _ referencedObject = &bufferView{}

func newBufferView(name string, target int, log logrus.FieldLogger) *bufferView {
	return &bufferView{named: named{name: name}, target: target, log: log}
}

func (bv *bufferView) kind() objectKind { return kindBufferView }

func (bv *bufferView) iterReferences(ctx *writeContext) []referencedObject {
	return refs(ctx.ref(bv.buffer))
}

func (bv *bufferView) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	ctx.keyRef("buffer", bv.buffer)
	w.KeyInt("byteLength", bv.byteLength)
	w.KeyInt("byteOffset", bv.byteOffset)
	if !ctx.v1() && bv.byteStride != nil && *bv.byteStride > 0 {
		w.KeyInt("byteStride", int64(*bv.byteStride))
	}
	w.KeyInt("target", int64(bv.target))
	w.EndObject()
}

// enableFileStream moves staging for this view to a file under dir. It must be
// called before anything is appended; on failure the view stays in memory.
//
// Parameters:
//   - dir: the directory to create the spool file in
//
// Returns:
//   - error: error if the view already holds data or the file cannot be created
func (bv *bufferView) enableFileStream(dir string) error {
	if bv.byteLength > 0 {
		return fmt.Errorf("buffer view %s: cannot spool after data was written", bv.name)
	}
	path := filepath.Join(dir, "bufferview_"+bv.name+".tmp")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("buffer view %s: failed to create spool file: %w", bv.name, err)
	}
	bv.file = f
	bv.spoolPath = path
	return nil
}

// append adds raw bytes to the end of the view. Write errors are latched and
// reported by copyTo.
func (bv *bufferView) append(data []byte) {
	if bv.err != nil || len(data) == 0 {
		return
	}
	var n int
	if bv.file != nil {
		n, bv.err = bv.file.Write(data)
	} else {
		n, bv.err = bv.mem.Write(data)
	}
	bv.byteLength += int64(n)
}

// appendSlice appends the in-memory representation of data to bv.
// Element types are fixed-size little-endian numeric arrays.
func appendSlice[T any](bv *bufferView, data []T) {
	bv.append(common.SliceToBytes(data))
}

// viewMark is the part of a view's state that appends and new accessors change.
type viewMark struct {
	byteLength int64
	byteStride *int
	packedSize *int
}

func (bv *bufferView) mark() viewMark {
	return viewMark{byteLength: bv.byteLength, byteStride: bv.byteStride, packedSize: bv.packedSize}
}

// rollback drops bytes appended since m and restores the stride it had then.
// Errors are latched like append errors.
func (bv *bufferView) rollback(m viewMark) {
	bv.byteStride = m.byteStride
	bv.packedSize = m.packedSize
	if bv.err != nil || bv.byteLength == m.byteLength {
		return
	}
	if bv.file != nil {
		if bv.err = bv.file.Truncate(m.byteLength); bv.err != nil {
			return
		}
		if _, bv.err = bv.file.Seek(m.byteLength, io.SeekStart); bv.err != nil {
			return
		}
	} else {
		bv.mem.Truncate(int(m.byteLength))
	}
	bv.byteLength = m.byteLength
}

// paddedLength is the space the view occupies in the buffer.
func (bv *bufferView) paddedLength() int64 {
	return align(bv.byteLength, viewAlignment)
}

// copyTo writes the view's bytes to w followed by zero padding up to paddedLength.
//
// Parameters:
//   - w: the destination
//
// Returns:
//   - error: a latched append error, or an error reading back or writing the bytes
func (bv *bufferView) copyTo(w io.Writer) error {
	if bv.err != nil {
		return fmt.Errorf("buffer view %s: %w", bv.name, bv.err)
	}
	if bv.file != nil {
		if _, err := bv.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("buffer view %s: %w", bv.name, err)
		}
		if _, err := io.CopyN(w, bv.file, bv.byteLength); err != nil {
			return fmt.Errorf("buffer view %s: failed to copy spool file: %w", bv.name, err)
		}
	} else if _, err := w.Write(bv.mem.Bytes()); err != nil {
		return fmt.Errorf("buffer view %s: %w", bv.name, err)
	}
	if pad := bv.paddedLength() - bv.byteLength; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("buffer view %s: %w", bv.name, err)
		}
	}
	return nil
}

// dispose releases the staging storage. Failures are logged, never returned.
// Safe to call more than once.
func (bv *bufferView) dispose() {
	bv.mem = bytes.Buffer{}
	if bv.file == nil {
		return
	}
	if err := bv.file.Close(); err != nil {
		bv.log.WithError(err).WithField("view", bv.name).Warn("failed to close spool file")
	}
	if err := os.Remove(bv.spoolPath); err != nil && !os.IsNotExist(err) {
		bv.log.WithError(err).WithField("path", bv.spoolPath).Warn("failed to delete spool file")
	}
	bv.file = nil
}

func align(n, to int64) int64 {
	return (n + to - 1) / to * to
}
