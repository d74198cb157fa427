package exporter

// Primitive topology. Only triangle lists are written.
const modeTriangles = 4

// primitive is one draw call of a mesh. The material is held by name so a
// mesh can be created before the material it uses.
type primitive struct {
	attributes   *attributes
	indices      *accessor
	materialName string
	mode         int
}

func (p *primitive) iterReferences(ctx *writeContext) []referencedObject {
	out := p.attributes.iterReferences(ctx)
	out = append(out, refs(ctx.ref(p.indices), ctx.refByName(p.materialName))...)
	return out
}

func (p *primitive) write(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.Key("attributes")
	p.attributes.write(ctx)
	ctx.keyRef("indices", p.indices)
	if mat := ctx.refByName(p.materialName); mat != nil {
		ctx.keyRef("material", mat)
	}
	w.KeyInt("mode", int64(p.mode))
	w.EndObject()
}

// mesh is a list of primitives sharing one node.
type mesh struct {
	named
	primitives []*primitive
}

var _ referencedObject = &mesh{}

func meshName(uniqueName string) string {
	return "mesh_" + uniqueName
}

func (m *mesh) kind() objectKind { return kindMesh }

func (m *mesh) iterReferences(ctx *writeContext) []referencedObject {
	var out []referencedObject
	for _, p := range m.primitives {
		out = append(out, p.iterReferences(ctx)...)
	}
	return out
}

func (m *mesh) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyString("name", m.PresentationName())
	w.Key("primitives")
	w.BeginArray()
	for _, p := range m.primitives {
		p.write(ctx)
	}
	w.EndArray()
	w.EndObject()
}
