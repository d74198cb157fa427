package loader

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrBadContainer is returned when a GLB or b3dm container is truncated or malformed.
	ErrBadContainer = errors.NewKind("malformed container: %s")

	// ErrUnknownVersion is returned for a container or asset version the codec cannot read.
	ErrUnknownVersion = errors.NewKind("unsupported glTF version %s")

	// ErrBrokenReference is returned when an object refers to one that does not exist.
	ErrBrokenReference = errors.NewKind("%s %s refers to missing %s %s")

	// ErrBadObject is returned when an object is null or holds an impossible value.
	ErrBadObject = errors.NewKind("%s %s: %s")

	// ErrBadHierarchy is returned when node children do not form a tree.
	ErrBadHierarchy = errors.NewKind("node %s %s")

	// ErrShortAccessor is returned in strict mode when an accessor's data ends before its count.
	ErrShortAccessor = errors.NewKind("accessor %s: %d of %d elements present")

	// ErrUnsupportedFormat is returned when a path does not name a glTF file.
	ErrUnsupportedFormat = errors.NewKind("unsupported model format %q")

	// ErrInvalidScale is returned when the import scale cannot be applied.
	ErrInvalidScale = errors.NewKind("invalid import scale: %s")

	// ErrBadBuffer is returned when buffer data cannot be loaded.
	ErrBadBuffer = errors.NewKind("buffer %s: %s")
)
