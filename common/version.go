package common

import "strings"

// SchemaVersion selects one of the two incompatible glTF schema revisions.
type SchemaVersion int

const (
	// SchemaV1 is glTF 1.0: top-level collections are objects keyed by name.
	SchemaV1 SchemaVersion = 1
	// SchemaV2 is glTF 2.0: top-level collections are arrays referenced by index.
	SchemaV2 SchemaVersion = 2
)

// String returns the value written to asset.version.
func (v SchemaVersion) String() string {
	if v == SchemaV1 {
		return "1.0"
	}
	return "2.0"
}

// Valid reports whether v is a supported revision.
func (v SchemaVersion) Valid() bool {
	return v == SchemaV1 || v == SchemaV2
}

// ParseSchemaVersion maps an asset.version string to a revision.
// Anything not starting with "1" is treated as the newer schema.
func ParseSchemaVersion(s string) SchemaVersion {
	if strings.HasPrefix(strings.TrimSpace(s), "1") {
		return SchemaV1
	}
	return SchemaV2
}

// DefaultAxisConvention returns the axis convention files of version v are
// assumed to use when nothing else is known.
func DefaultAxisConvention(v SchemaVersion) AxisConvention {
	if v == SchemaV1 {
		return AxisGltfAccordingToPoly
	}
	return AxisGltf2
}
