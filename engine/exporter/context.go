package exporter

import (
	"strconv"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/sirupsen/logrus"
)

// writeContext is passed to every object while references are collected and
// while the document is written. It owns the JSON writer, the index assigned
// to each reachable object and the set of references the current object emitted.
type writeContext struct {
	version common.SchemaVersion
	w       *jsonWriter
	reg     *registry
	log     logrus.FieldLogger

	// index is nil while references are being collected.
	index   map[referencedObject]int
	emitted map[referencedObject]struct{}
	err     error
}

func newWriteContext(version common.SchemaVersion, reg *registry, log logrus.FieldLogger) *writeContext {
	return &writeContext{
		version: version,
		w:       newJSONWriter(nil),
		reg:     reg,
		log:     log,
		emitted: make(map[referencedObject]struct{}),
	}
}

// v1 reports whether the document being written is glTF 1.
func (c *writeContext) v1() bool {
	return c.version == common.SchemaV1
}

// fail records err. Only the first error is kept; later ones are logged.
func (c *writeContext) fail(err error) {
	if err == nil {
		return
	}
	if c.err == nil {
		c.err = err
		return
	}
	c.log.WithError(err).Error("additional export error")
}

// ref validates that obj is the registered owner of its name and returns it.
// Nil objects and lookup failures yield nil so callers can pass the result
// straight to refs.
func (c *writeContext) ref(obj referencedObject) referencedObject {
	if obj == nil {
		return nil
	}
	if err := c.reg.lookupExact(obj); err != nil {
		c.fail(err)
		return nil
	}
	return obj
}

// refByName resolves a forward reference recorded as a name.
func (c *writeContext) refByName(name string) referencedObject {
	obj, err := c.reg.lookup(name)
	if err != nil {
		c.fail(err)
		return nil
	}
	return obj
}

// refs drops nil entries.
func refs(objs ...referencedObject) []referencedObject {
	out := make([]referencedObject, 0, len(objs))
	for _, o := range objs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// serializeReference returns the JSON form of a reference to obj and records
// obj as emitted by the object currently being written. glTF 2 refers to
// objects by index, glTF 1 by quoted name.
func (c *writeContext) serializeReference(obj referencedObject) string {
	if c.ref(obj) == nil {
		return "null"
	}
	c.emitted[obj] = struct{}{}
	if c.v1() {
		if _, ok := c.index[obj]; !ok && c.index != nil {
			c.fail(ErrNotReachable.New(obj.Name()))
		}
		return quote(obj.Name())
	}
	i, ok := c.index[obj]
	if !ok {
		c.fail(ErrNotReachable.New(obj.Name()))
		return "null"
	}
	return strconv.Itoa(i)
}

// writeRef writes a reference as a value.
func (c *writeContext) writeRef(obj referencedObject) {
	c.w.Raw(c.serializeReference(obj))
}

// keyRef writes a reference as an object member.
func (c *writeContext) keyRef(key string, obj referencedObject) {
	c.w.Key(key)
	c.writeRef(obj)
}
