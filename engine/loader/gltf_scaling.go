package loader

import (
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/sirupsen/logrus"
)

// extremeSize is the largest bounds side, in file units, imported without
// moving some of the scale from the vertices into the top-level nodes.
const extremeSize = 371

// minFitSize is the smallest bounds side FIT mode will rescale.
const minFitSize = 0.001

// sceneScale is how an import is sized and placed.
type sceneScale struct {
	// direct multiplies vertex data and node translations.
	direct float32
	// node scales the top-level nodes.
	node float32
	// offset is added to the translation of the top-level nodes, in host axes.
	offset [3]float32
}

// bounds is an axis-aligned box that starts out empty.
type bounds struct {
	min, max [3]float32
	valid    bool
}

func (b *bounds) encapsulate(p [3]float32) {
	if !b.valid {
		b.min, b.max, b.valid = p, p, true
		return
	}
	for k := 0; k < 3; k++ {
		b.min[k] = min(b.min[k], p[k])
		b.max[k] = max(b.max[k], p[k])
	}
}

func (b bounds) center() [3]float32 {
	return [3]float32{(b.min[0] + b.max[0]) / 2, (b.min[1] + b.max[1]) / 2, (b.min[2] + b.max[2]) / 2}
}

func (b bounds) biggestSide() float32 {
	return max(b.max[0]-b.min[0], b.max[1]-b.min[1], b.max[2]-b.min[2])
}

// sceneBounds returns the bounds of the scene in file space. Each primitive
// contributes the box of its POSITION min/max transformed by its node, or its
// transformed vertices when the accessor declares no min/max.
func sceneBounds(scene gltfScene) bounds {
	var b bounds
	visited := map[gltfNode]bool{}
	var visit func(parent common.Mat4, n gltfNode)
	visit = func(parent common.Mat4, n gltfNode) {
		if visited[n] {
			return
		}
		visited[n] = true
		m := parent.Mul(n.localMatrix())
		if mesh := n.nodeMesh(); mesh != nil {
			for _, prim := range mesh.primitiveList() {
				encapsulatePrimitive(&b, m, prim)
			}
		}
		for _, c := range n.childNodes() {
			visit(m, c)
		}
	}
	for _, n := range scene.rootNodes() {
		visit(common.IdentityMat4(), n)
	}
	return b
}

func encapsulatePrimitive(b *bounds, m common.Mat4, prim gltfPrimitive) {
	pos := prim.attribute("POSITION")
	if pos == nil || pos.ComponentType != gltfComponentTypeFloat || pos.Type != gltfAccessorTypeVec3 {
		return
	}
	if len(pos.Min) == 3 && len(pos.Max) == 3 {
		lo, hi := pos.Min, pos.Max
		for i := 0; i < 8; i++ {
			corner := [3]float32{lo[0], lo[1], lo[2]}
			for k := 0; k < 3; k++ {
				if i&(1<<k) != 0 {
					corner[k] = hi[k]
				}
			}
			b.encapsulate(m.MulPoint(corner))
		}
		return
	}
	data, _ := pos.readFloats(0, pos.Count, false)
	for i := 0; i+2 < len(data); i += 3 {
		b.encapsulate(m.MulPoint([3]float32{data[i], data[i+1], data[i+2]}))
	}
}

// fitScale returns the factor that makes the biggest side of b equal size.
//
// Returns:
//   - float32: the factor
//   - bool: false if b is empty or too small to rescale
func fitScale(b bounds, size float32) (float32, bool) {
	side := b.biggestSide()
	if !b.valid || side < minFitSize {
		return 1, false
	}
	return size / side, true
}

// computeSceneScale decides how the scene is sized and placed.
//
// In CONVERT mode the vertex data is multiplied by ScaleFactor. A scene bigger
// than extremeSize is additionally shrunk in its vertex data and grown back by
// the same amount on its top-level nodes, which keeps the vertex values in a
// comfortable range while the overall size is unchanged.
//
// In FIT mode the vertex data is scaled so the biggest bounds side equals
// DesiredSize.
//
// Parameters:
//   - logger: receives the too-small warning
//   - opts: the import options
//   - scene: the scene to import, or nil
//   - basis: converts file axes to host axes
//
// Returns:
//   - sceneScale: the scale factors and recentering offset
//   - error: ErrInvalidScale if the options cannot produce a usable scale
func computeSceneScale(logger *logrus.Logger, opts config.ImportOptions, scene gltfScene, basis common.Mat4) (sceneScale, error) {
	s := sceneScale{direct: 1, node: 1}
	var b bounds
	if scene != nil {
		b = sceneBounds(scene)
	}

	switch opts.Rescale {
	case config.RescaleConvert, "":
		if opts.ScaleFactor == 0 {
			return s, ErrInvalidScale.New("scale_factor must be non-zero in CONVERT mode")
		}
		s.direct = opts.ScaleFactor
		if shrink, ok := fitScale(b, extremeSize); ok && shrink < 1 {
			s.direct *= shrink
			s.node /= shrink
		}
	case config.RescaleFit:
		if opts.DesiredSize <= 0 {
			return s, ErrInvalidScale.New("desired_size must be positive in FIT mode")
		}
		factor, ok := fitScale(b, opts.DesiredSize)
		if !ok {
			logger.WithField("size", b.biggestSide()).Warn("Could not automatically resize object; object is too small or empty")
		}
		s.direct = factor
	default:
		return s, ErrInvalidScale.New("unknown rescale mode " + string(opts.Rescale))
	}

	if opts.Recenter && b.valid {
		c := b.center()
		s.offset = basis.MulVector([3]float32{-c[0] * s.direct, -c[1] * s.direct, -c[2] * s.direct})
	}
	return s, nil
}

// hostMatrix converts a node's local matrix into host axes and units. Only
// the translation is a distance, so only it is scaled.
//
// Parameters:
//   - m: the node's local matrix in file space
//   - basis: converts file axes to host axes
//   - inverse: converts host axes to file axes
//   - scale: the direct scale factor
//
// Returns:
//   - common.Mat4: basis * m * inverse with the translation scaled
func hostMatrix(m, basis, inverse common.Mat4, scale float32) common.Mat4 {
	out := basis.Mul(m).Mul(inverse)
	out[12] *= scale
	out[13] *= scale
	out[14] *= scale
	return out
}

// topLevelMatrix applies the recentering offset and the node scale to the
// host matrix of a scene root.
func (s sceneScale) topLevelMatrix(m common.Mat4) common.Mat4 {
	m[12] += s.offset[0]
	m[13] += s.offset[1]
	m[14] += s.offset[2]
	if s.node != 1 {
		m = common.ScaleMat4(s.node).Mul(m)
	}
	return m
}
