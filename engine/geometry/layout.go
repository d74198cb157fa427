// Package geometry defines the vertex data handed between the authoring side and the
// codec: a Pool of parallel per-vertex arrays plus the VertexLayout that says which
// arrays are populated and how each texcoord channel is meant to be interpreted.
package geometry

import "fmt"

// MaxTexcoords is the number of texture-coordinate channels a Pool can carry.
const MaxTexcoords = 4

// Semantic says how a vector channel reacts to transforms and unit changes.
type Semantic int

const (
	// SemanticUnspecified is unknown. Texcoord 0 of size 2 is treated as XyIsUv,
	// normals as UnitlessVector.
	SemanticUnspecified Semantic = iota
	// SemanticPosition has units of distance and is affected by translation.
	SemanticPosition
	// SemanticVector has units of distance and ignores translation.
	SemanticVector
	// SemanticXyIsUvZIsDistance is a uv in xy and a distance in z; only z scales.
	SemanticXyIsUvZIsDistance
	// SemanticUnitlessVector changes basis but never scales.
	SemanticUnitlessVector
	// SemanticXyIsUv is a uv used for texture fetch.
	SemanticXyIsUv
	// SemanticTimestamp holds times and is left untouched by transforms.
	SemanticTimestamp
)

var semanticNames = [...]string{
	"Unspecified", "Position", "Vector", "XyIsUvZIsDistance", "UnitlessVector", "XyIsUv", "Timestamp",
}

func (s Semantic) String() string {
	if int(s) < 0 || int(s) >= len(semanticNames) {
		return fmt.Sprintf("Semantic(%d)", int(s))
	}
	return semanticNames[s]
}

// IsUV reports whether xy of a channel with this semantic is a texture coordinate.
func (s Semantic) IsUV() bool {
	return s == SemanticXyIsUv || s == SemanticXyIsUvZIsDistance
}

// TexcoordInfo describes one texcoord channel.
type TexcoordInfo struct {
	// Size is the element width: 0 (absent), 2, 3 or 4.
	Size int
	// Semantic is how the channel's data behaves under transforms.
	Semantic Semantic
}

// VertexLayout says which Pool arrays are present.
type VertexLayout struct {
	Texcoords      [MaxTexcoords]TexcoordInfo
	UseNormals     bool
	NormalSemantic Semantic
	UseColors      bool
	UseTangents    bool
	// UseVertexIDs exports each vertex's index as an attribute for consumers
	// that have no built-in vertex id.
	UseVertexIDs bool
}

// Validate checks the texcoord sizes.
//
// Returns:
//   - error: error naming the first channel with an invalid size
func (l VertexLayout) Validate() error {
	for i, tc := range l.Texcoords {
		switch tc.Size {
		case 0, 2, 3, 4:
		default:
			return fmt.Errorf("texcoord%d: invalid size %d", i, tc.Size)
		}
	}
	return nil
}
