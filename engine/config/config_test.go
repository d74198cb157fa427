package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	src := `
[export]
version = 1
binary = true
copyright = "me"
rtc_center = [1.0, 2.0, 3.0]

[import]
rescale = "FIT"
desired_size = 2.5
strict_accessors = true
`
	opts, err := Decode(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, common.SchemaV1, opts.Export.SchemaVersion())
	assert.True(t, opts.Export.Binary)
	assert.Equal(t, "me", opts.Export.Copyright)
	require.NotNil(t, opts.Export.RTCCenter)
	assert.Equal(t, [3]float32{1, 2, 3}, *opts.Export.RTCCenter)
	// Untouched keys keep their defaults.
	assert.Equal(t, "tilt-brush-sub010", opts.Export.Generator)
	assert.Equal(t, RescaleFit, opts.Import.Rescale)
	assert.Equal(t, float32(2.5), opts.Import.DesiredSize)
	assert.True(t, opts.Import.StrictAccessors)
	assert.Equal(t, 65534, opts.Import.MaxVertsPerMesh)
}

func TestDecodeRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"version":     "[export]\nversion = 3\n",
		"axes":        "[export]\naxes = \"sideways\"\n",
		"rescale":     "[import]\nrescale = \"STRETCH\"\n",
		"color space": "[import]\ncolor_space = \"cmyk\"\n",
		"unknown key": "[export]\nbogus = 1\n",
	}
	for name, src := range cases {
		_, err := Decode(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codec.toml")
	require.NoError(t, os.WriteFile(path, []byte("[import]\ncolor_space = \"srgb\"\n"), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	cs, err := opts.Import.HostColorSpace()
	require.NoError(t, err)
	assert.Equal(t, common.ColorSpaceSRGB, cs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestExportAxisConventionFallback(t *testing.T) {
	assert.Equal(t, common.AxisGltf2, ExportOptions{Axes: "nope"}.AxisConvention())
	assert.Equal(t, common.AxisStl, ExportOptions{Axes: "stl"}.AxisConvention())
}
