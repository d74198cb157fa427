package exporter

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrDuplicateName is returned when two registered objects share a name.
	ErrDuplicateName = errors.NewKind("duplicate object name %q")

	// ErrMissingObject is returned when a reference names an object that was never registered.
	ErrMissingObject = errors.NewKind("no object named %q is registered")

	// ErrNameConflict is returned when a name resolves to a different object than the one referenced.
	ErrNameConflict = errors.NewKind("name %q is registered to a different object")

	// ErrNotReachable is returned when a written reference points at an object outside the scene closure.
	ErrNotReachable = errors.NewKind("object %q is referenced but has no index")

	// ErrUnsupportedAccessor is returned when no canonical buffer view holds the requested element type.
	ErrUnsupportedAccessor = errors.NewKind("no buffer view holds %s %s elements")

	// ErrStrideMismatch is returned when two accessors disagree on the stride of their shared view.
	ErrStrideMismatch = errors.NewKind("buffer view %q: accessor %q wants stride %d/%d, view has %d/%d")

	// ErrTypeMismatch is returned when data is written to an accessor of another element type.
	ErrTypeMismatch = errors.NewKind("accessor %q is %s %s, cannot populate with %s %s")

	// ErrIndexOutOfRange is returned when a mesh index cannot be stored as an unsigned short.
	ErrIndexOutOfRange = errors.NewKind("mesh %q: vertex index %d does not fit an unsigned short index")

	// ErrInvalidLayout is returned when a vertex layout cannot be expressed in the target schema.
	ErrInvalidLayout = errors.NewKind("invalid vertex layout: %s")

	// ErrWriterDisabled is recorded when an object writes while references are being collected.
	ErrWriterDisabled = errors.NewKind("write while collecting references")

	// ErrAlreadyWritten is returned when an exporter is written twice.
	ErrAlreadyWritten = errors.NewKind("exporter has already been written")

	// ErrInconsistentReferences is returned when an object writes different references than it declares.
	ErrInconsistentReferences = errors.NewKind("object %q wrote references %v but declared %v")
)
