package exporter

import (
	"io"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// jsonWriter emits indented JSON one token at a time. Keeping a stack of
// "first element" flags lets objects write themselves without building a tree.
//
// A jsonWriter with a nil destination is disabled: any attempt to write is
// recorded as ErrWriterDisabled. The reference-collection pass runs objects
// against a disabled writer.
type jsonWriter struct {
	out      io.Writer
	stack    []bool
	afterKey bool
	err      error
}

// newJSONWriter creates a writer targeting out. A nil out yields a disabled writer.
//
// Parameters:
//   - out: the destination, or nil
//
// Returns:
//   - *jsonWriter: the writer
func newJSONWriter(out io.Writer) *jsonWriter {
	return &jsonWriter{out: out}
}

// Err returns the first error the writer hit.
func (w *jsonWriter) Err() error {
	return w.err
}

func (w *jsonWriter) disabled() bool {
	return w.out == nil
}

func (w *jsonWriter) raw(s string) {
	if w.err != nil {
		return
	}
	if w.disabled() {
		w.err = ErrWriterDisabled.New()
		return
	}
	_, w.err = io.WriteString(w.out, s)
}

func (w *jsonWriter) indent() string {
	return strings.Repeat("  ", len(w.stack))
}

// prefix writes the separator that must precede the next key or value.
func (w *jsonWriter) prefix() {
	if w.afterKey {
		w.afterKey = false
		return
	}
	if len(w.stack) == 0 {
		return
	}
	top := len(w.stack) - 1
	if !w.stack[top] {
		w.raw(",")
	}
	w.stack[top] = false
	w.raw("\n" + w.indent())
}

// Key writes an object member name. The next call must write its value.
func (w *jsonWriter) Key(k string) {
	w.prefix()
	w.raw(quote(k) + ": ")
	w.afterKey = true
}

// BeginObject opens an object.
func (w *jsonWriter) BeginObject() {
	w.prefix()
	w.raw("{")
	w.stack = append(w.stack, true)
}

// EndObject closes the innermost object.
func (w *jsonWriter) EndObject() {
	w.end("}")
}

// BeginArray opens an array.
func (w *jsonWriter) BeginArray() {
	w.prefix()
	w.raw("[")
	w.stack = append(w.stack, true)
}

// EndArray closes the innermost array.
func (w *jsonWriter) EndArray() {
	w.end("]")
}

func (w *jsonWriter) end(closer string) {
	if len(w.stack) == 0 {
		return
	}
	empty := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	if !empty {
		w.raw("\n" + w.indent())
	}
	w.raw(closer)
}

// String writes a quoted string value.
func (w *jsonWriter) String(s string) {
	w.prefix()
	w.raw(quote(s))
}

// Int writes an integer value.
func (w *jsonWriter) Int(v int64) {
	w.prefix()
	w.raw(strconv.FormatInt(v, 10))
}

// Float writes a float value with the shortest round-tripping representation.
func (w *jsonWriter) Float(v float32) {
	w.prefix()
	w.raw(formatFloat(v))
}

// Bool writes a boolean value.
func (w *jsonWriter) Bool(v bool) {
	w.prefix()
	w.raw(strconv.FormatBool(v))
}

// Raw writes a preformatted value.
func (w *jsonWriter) Raw(v string) {
	w.prefix()
	w.raw(v)
}

// Floats writes a flat array of floats on a single line.
func (w *jsonWriter) Floats(vs []float32) {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	w.Raw("[" + strings.Join(parts, ", ") + "]")
}

// Ints writes a flat array of integers on a single line.
func (w *jsonWriter) Ints(vs []int64) {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatInt(v, 10)
	}
	w.Raw("[" + strings.Join(parts, ", ") + "]")
}

// KeyString, KeyInt, KeyFloat and KeyBool write a member in one call.
func (w *jsonWriter) KeyString(k, v string) {
	w.Key(k)
	w.String(v)
}

func (w *jsonWriter) KeyInt(k string, v int64) {
	w.Key(k)
	w.Int(v)
}

func (w *jsonWriter) KeyFloat(k string, v float32) {
	w.Key(k)
	w.Float(v)
}

func (w *jsonWriter) KeyBool(k string, v bool) {
	w.Key(k)
	w.Bool(v)
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

// formatFloat formats v for JSON. NaN and infinities have no JSON spelling and are written as 0.
func formatFloat(v float32) string {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 32)
}
