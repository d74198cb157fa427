package exporter

import (
	"bytes"
	"os"
	"testing"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferViewPadsToAlignment(t *testing.T) {
	log, _ := test.NewNullLogger()
	bv := newBufferView("indices", targetElementArrayBuffer, log)
	appendSlice(bv, []uint16{1, 2, 3})
	assert.Equal(t, int64(6), bv.byteLength)
	assert.Equal(t, int64(8), bv.paddedLength())

	var out bytes.Buffer
	require.NoError(t, bv.copyTo(&out))
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0, 0, 0}, out.Bytes())
}

func TestBufferViewSpoolsToFile(t *testing.T) {
	log, _ := test.NewNullLogger()
	dir := t.TempDir()
	bv := newBufferView("vertices", targetArrayBuffer, log)
	require.NoError(t, bv.enableFileStream(dir))
	bv.append([]byte{9, 8, 7, 6, 5})

	var out bytes.Buffer
	require.NoError(t, bv.copyTo(&out))
	assert.Equal(t, []byte{9, 8, 7, 6, 5, 0, 0, 0}, out.Bytes())

	path := bv.spoolPath
	_, err := os.Stat(path)
	require.NoError(t, err)
	bv.dispose()
	bv.dispose()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestBufferViewSpoolAfterWrite(t *testing.T) {
	log, _ := test.NewNullLogger()
	bv := newBufferView("late", targetArrayBuffer, log)
	bv.append([]byte{1})
	assert.Error(t, bv.enableFileStream(t.TempDir()))
	assert.Nil(t, bv.file)
}

func TestAlign(t *testing.T) {
	assert.Equal(t, int64(0), align(0, 4))
	assert.Equal(t, int64(4), align(1, 4))
	assert.Equal(t, int64(4), align(4, 4))
	assert.Equal(t, int64(12), align(9, 4))
}

func TestStrideFor(t *testing.T) {
	assert.Equal(t, 0, strideFor(common.SchemaV2, typeScalar, componentUnsignedShort, false))
	assert.Equal(t, 0, strideFor(common.SchemaV1, typeScalar, componentFloat, true))
	assert.Equal(t, 4, strideFor(common.SchemaV2, typeScalar, componentFloat, true))
	assert.Equal(t, 12, strideFor(common.SchemaV2, typeVec3, componentFloat, true))
	assert.Equal(t, 4, strideFor(common.SchemaV1, typeVec4, componentUnsignedByte, true))
}

func testAccessor(name string, view *bufferView, typ accessorType, ctype componentType) *accessor {
	return &accessor{
		named:        named{name: name},
		view:         view,
		typ:          typ,
		ctype:        ctype,
		isVertexAttr: true,
		byteStride:   strideFor(common.SchemaV2, typ, ctype, true),
	}
}

func TestSanityCheckViewStride(t *testing.T) {
	log, _ := test.NewNullLogger()
	view := newBufferView("floats", targetArrayBuffer, log)

	first := testAccessor("a", view, typeVec3, componentFloat)
	require.NoError(t, first.sanityCheckViewStride())
	require.NotNil(t, view.byteStride)
	assert.Equal(t, 12, *view.byteStride)

	same := testAccessor("b", view, typeVec3, componentFloat)
	assert.NoError(t, same.sanityCheckViewStride())

	other := testAccessor("c", view, typeVec2, componentFloat)
	assert.True(t, ErrStrideMismatch.Is(other.sanityCheckViewStride()))
}

func TestPopulateFloatFlipsAndBounds(t *testing.T) {
	log, _ := test.NewNullLogger()
	view := newBufferView("uv", targetArrayBuffer, log)
	a := testAccessor("uv", view, typeVec2, componentFloat)

	require.NoError(t, a.populateFloat([]float32{0.25, 0.75, 1, 0}, typeVec2, true, true))
	assert.Equal(t, 2, a.count)
	assert.Equal(t, int64(0), a.byteOffset)
	assert.Equal(t, int64(16), view.byteLength)
	assert.True(t, a.haveMinMax)
	assert.Equal(t, float32(0.25), a.minFloat[0])
	assert.Equal(t, float32(1), a.maxFloat[0])
	assert.Equal(t, float32(0.25), a.minFloat[1])
	assert.Equal(t, float32(1), a.maxFloat[1])

	err := a.populateFloat([]float32{1, 2, 3}, typeVec3, false, false)
	assert.True(t, ErrTypeMismatch.Is(err))
}

func TestPopulateUshortBounds(t *testing.T) {
	log, _ := test.NewNullLogger()
	view := newBufferView("idx", targetElementArrayBuffer, log)
	a := &accessor{named: named{name: "idx"}, view: view, typ: typeScalar, ctype: componentUnsignedShort}

	require.NoError(t, a.populateUshort([]uint16{4, 1, 7}))
	assert.Equal(t, int64(1), a.minInt)
	assert.Equal(t, int64(7), a.maxInt)
	assert.Equal(t, 3, a.count)
}

func TestPopulateColorsAsBytes(t *testing.T) {
	log, _ := test.NewNullLogger()
	view := newBufferView("color", targetArrayBuffer, log)
	a := testAccessor("color", view, typeVec4, componentUnsignedByte)
	require.NoError(t, a.populateColors([]common.Color32{{1, 2, 3, 4}}))

	var out bytes.Buffer
	require.NoError(t, view.copyTo(&out))
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Bytes())
}
