package exporter

import "strconv"

// GL capabilities enabled through technique states.
const (
	glBlend     = 3042
	glCullFace  = 2884
	glDepthTest = 2929
)

// Shader stages.
const (
	shaderFragment = 35632
	shaderVertex   = 35633
)

type techniqueParameter struct {
	name     string
	typ      int
	semantic string
}

// techniqueBinding maps a shader variable (a_x, u_x) to a parameter.
type techniqueBinding struct {
	name  string
	param string
}

// techniqueStates are the fixed-function states of a glTF 1 technique.
type techniqueStates struct {
	enable            []int
	blendFuncSeparate []int
	depthMask         *bool
}

// technique is a glTF 1 rendering technique: a program plus the bindings of
// its attributes and uniforms.
type technique struct {
	named
	program    *program
	parameters []techniqueParameter
	attributes []techniqueBinding
	uniforms   []techniqueBinding
	states     techniqueStates
}

var _ referencedObject = &technique{}

func (t *technique) kind() objectKind { return kindTechnique }

func (t *technique) iterReferences(ctx *writeContext) []referencedObject {
	return refs(ctx.ref(t.program))
}

// addAttribute declares a vertex attribute a_name bound to parameter name.
func (t *technique) addAttribute(name string, typ int, semantic string) {
	t.parameters = append(t.parameters, techniqueParameter{name: name, typ: typ, semantic: semantic})
	t.attributes = append(t.attributes, techniqueBinding{name: "a_" + name, param: name})
}

// addUniform declares a uniform u_name bound to parameter name.
func (t *technique) addUniform(name string, typ int, semantic string) {
	t.parameters = append(t.parameters, techniqueParameter{name: name, typ: typ, semantic: semantic})
	t.uniforms = append(t.uniforms, techniqueBinding{name: "u_" + name, param: name})
}

// addDefaultUniforms declares the matrices every technique needs. With a
// relative-to-center origin the model-view matrix uses the CESIUM_RTC semantic.
func (t *technique) addDefaultUniforms(rtc bool) {
	modelView := "MODELVIEW"
	if rtc {
		modelView = "CESIUM_RTC_MODELVIEW"
	}
	t.addUniform("modelViewMatrix", techniqueMat4, modelView)
	t.addUniform("projectionMatrix", techniqueMat4, "PROJECTION")
	t.addUniform("normalMatrix", techniqueMat3, "MODELVIEWINVERSETRANSPOSE")
}

func (t *technique) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	ctx.keyRef("program", t.program)

	w.Key("parameters")
	w.BeginObject()
	for _, p := range t.parameters {
		w.Key(p.name)
		w.BeginObject()
		w.KeyInt("type", int64(p.typ))
		if p.semantic != "" {
			w.KeyString("semantic", p.semantic)
		}
		w.EndObject()
	}
	w.EndObject()

	w.Key("attributes")
	w.BeginObject()
	for _, a := range t.attributes {
		w.KeyString(a.name, a.param)
	}
	w.EndObject()

	w.Key("uniforms")
	w.BeginObject()
	for _, u := range t.uniforms {
		w.KeyString(u.name, u.param)
	}
	w.EndObject()

	w.Key("states")
	w.BeginObject()
	if len(t.states.enable) > 0 {
		ints := make([]int64, len(t.states.enable))
		for i, e := range t.states.enable {
			ints[i] = int64(e)
		}
		w.Key("enable")
		w.Ints(ints)
	}
	if len(t.states.blendFuncSeparate) > 0 || t.states.depthMask != nil {
		w.Key("functions")
		w.BeginObject()
		if len(t.states.blendFuncSeparate) > 0 {
			ints := make([]int64, len(t.states.blendFuncSeparate))
			for i, f := range t.states.blendFuncSeparate {
				ints[i] = int64(f)
			}
			w.Key("blendFuncSeparate")
			w.Ints(ints)
		}
		if t.states.depthMask != nil {
			w.Key("depthMask")
			w.Raw("[" + boolString(*t.states.depthMask) + "]")
		}
		w.EndObject()
	}
	w.EndObject()
	w.EndObject()
}

// program links a vertex and a fragment shader.
type program struct {
	named
	attributes []string
	vertex     *shader
	fragment   *shader
}

var _ referencedObject = &program{}

func (p *program) kind() objectKind { return kindProgram }

func (p *program) iterReferences(ctx *writeContext) []referencedObject {
	return refs(ctx.ref(p.fragment), ctx.ref(p.vertex))
}

func (p *program) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.Key("attributes")
	w.BeginArray()
	for _, a := range p.attributes {
		w.String(a)
	}
	w.EndArray()
	ctx.keyRef("fragmentShader", p.fragment)
	ctx.keyRef("vertexShader", p.vertex)
	w.EndObject()
}

// shader is one GLSL stage referenced by uri.
type shader struct {
	named
	stage int
	uri   string
}

var _ referencedObject = &shader{}

func (s *shader) kind() objectKind                                    { return kindShader }
func (s *shader) iterReferences(ctx *writeContext) []referencedObject { return nil }

func (s *shader) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyInt("type", int64(s.stage))
	w.KeyString("uri", s.uri)
	w.EndObject()
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
