package exporter

import (
	"strconv"

	"github.com/googlevr/tilt-brush-sub010/common"
)

// objectKind identifies the top-level collection an object is written into.
// The declaration order is the order collections appear in the document.
type objectKind int

const (
	kindBuffer objectKind = iota
	kindCamera
	kindAccessor
	kindBufferView
	kindMesh
	kindShader
	kindProgram
	kindTechnique
	kindSampler
	kindTexture
	kindImage
	kindMaterial
	kindNode
	kindScene
	numKinds
)

var collectionNames = [numKinds]string{
	"buffers", "cameras", "accessors", "bufferViews", "meshes",
	"shaders", "programs", "techniques",
	"samplers", "textures", "images", "materials", "nodes", "scenes",
}

// String returns the top-level key of the collection.
func (k objectKind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return collectionNames[k]
}

// writtenIn reports whether the collection exists in the given schema version.
// Shaders, programs and techniques were removed in glTF 2.
func (k objectKind) writtenIn(v common.SchemaVersion) bool {
	switch k {
	case kindShader, kindProgram, kindTechnique:
		return v == common.SchemaV1
	}
	return true
}

// referencedObject is anything that becomes an entry in a top-level collection.
//
// iterReferences must return exactly the objects writeObject serializes a
// reference to, in any order. The writer checks this on every object.
type referencedObject interface {
	// Name is the registry key. In glTF 1 it is also the id written to the file.
	Name() string

	kind() objectKind

	// iterReferences returns the objects this one refers to.
	iterReferences(ctx *writeContext) []referencedObject

	// writeObject serializes the object body as a JSON object.
	writeObject(ctx *writeContext)
}

// named is embedded by every referencedObject to hold its name and the
// human-facing name written to the "name" property.
type named struct {
	name             string
	presentationName string
}

func (n *named) Name() string {
	return n.name
}

// PresentationName returns the name written to the file, defaulting to Name.
func (n *named) PresentationName() string {
	if n.presentationName != "" {
		return n.presentationName
	}
	return n.name
}

// SetPresentationName overrides the name written to the file.
func (n *named) SetPresentationName(name string) {
	n.presentationName = name
}

// registry holds every object created during an export, grouped by collection
// in creation order, and a name index over all of them.
type registry struct {
	collections [numKinds][]referencedObject
	byName      map[string]referencedObject
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]referencedObject)}
}

// register adds obj to its collection.
//
// Parameters:
//   - obj: the object to add
//
// Returns:
//   - error: ErrDuplicateName if another object already uses the name
func (r *registry) register(obj referencedObject) error {
	if _, ok := r.byName[obj.Name()]; ok {
		return ErrDuplicateName.New(obj.Name())
	}
	r.byName[obj.Name()] = obj
	r.collections[obj.kind()] = append(r.collections[obj.kind()], obj)
	return nil
}

// unregister removes obj. Used for pass-scoped objects such as empty buffer views.
func (r *registry) unregister(obj referencedObject) {
	if r.byName[obj.Name()] != obj {
		return
	}
	delete(r.byName, obj.Name())
	objs := r.collections[obj.kind()]
	for i, o := range objs {
		if o == obj {
			r.collections[obj.kind()] = append(objs[:i], objs[i+1:]...)
			break
		}
	}
}

// registryMark records collection lengths so later registrations can be undone.
type registryMark [numKinds]int

func (r *registry) mark() registryMark {
	var m registryMark
	for k, objs := range r.collections {
		m[k] = len(objs)
	}
	return m
}

// rollback unregisters every object added since m.
func (r *registry) rollback(m registryMark) {
	for k, objs := range r.collections {
		if len(objs) <= m[k] {
			continue
		}
		for _, o := range objs[m[k]:] {
			delete(r.byName, o.Name())
		}
		r.collections[k] = objs[:m[k]]
	}
}

// lookup resolves a name.
func (r *registry) lookup(name string) (referencedObject, error) {
	obj, ok := r.byName[name]
	if !ok {
		return nil, ErrMissingObject.New(name)
	}
	return obj, nil
}

// lookupExact resolves obj's name and checks it still refers to obj.
func (r *registry) lookupExact(obj referencedObject) error {
	found, err := r.lookup(obj.Name())
	if err != nil {
		return err
	}
	if found != obj {
		return ErrNameConflict.New(obj.Name())
	}
	return nil
}

// all returns every registered object in collection order.
func (r *registry) all() []referencedObject {
	var out []referencedObject
	for k := objectKind(0); k < numKinds; k++ {
		out = append(out, r.collections[k]...)
	}
	return out
}

// uniqueName returns desired if it is free, else the first free "desired i".
func (r *registry) uniqueName(desired string) string {
	if _, ok := r.byName[desired]; !ok {
		return desired
	}
	for i := 0; ; i++ {
		candidate := desired + " " + strconv.Itoa(i)
		if _, ok := r.byName[candidate]; !ok {
			return candidate
		}
	}
}
