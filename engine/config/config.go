// Package config holds the options that steer glTF export and import. Options are plain
// data: they can be decoded from TOML, built from DefaultOptions, or both.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/googlevr/tilt-brush-sub010/common"
)

// RescaleMode selects how imported geometry is sized.
type RescaleMode string

const (
	// RescaleConvert multiplies by ScaleFactor, converting file units to scene units.
	RescaleConvert RescaleMode = "CONVERT"
	// RescaleFit scales the model so its largest bounds side equals DesiredSize.
	RescaleFit RescaleMode = "FIT"
)

// Options is the root of the codec configuration file.
type Options struct {
	Export ExportOptions `toml:"export"`
	Import ImportOptions `toml:"import"`
}

// ExportOptions configures the exporter.
type ExportOptions struct {
	// Version is the glTF schema revision to write: 1 or 2.
	Version int `toml:"version"`
	// Binary writes a single-file GLB container instead of .gltf + .bin.
	Binary bool `toml:"binary"`
	// B3dm wraps the GLB container in a b3dm tile header. Implies Binary.
	B3dm bool `toml:"b3dm"`
	// Generator and Copyright fill asset.generator and asset.copyright.
	Generator string `toml:"generator"`
	Copyright string `toml:"copyright"`
	// Spool writes buffer views to temp files instead of memory.
	Spool bool `toml:"spool"`
	// TempDir is the parent directory for spool files. Empty means os.TempDir().
	TempDir string `toml:"temp_dir"`
	// RTCCenter, when set, emits the CESIUM_RTC extension with this center.
	RTCCenter *[3]float32 `toml:"rtc_center"`
	// Axes names the axis convention written to the file. Empty picks the
	// convention implied by the schema version.
	Axes string `toml:"axes"`
	// CopyTextures copies local texture files next to the output.
	CopyTextures bool `toml:"copy_textures"`
}

// ImportOptions configures the importer.
type ImportOptions struct {
	// Axes names the axis convention assumed for the file. Empty picks the
	// convention implied by the schema version.
	Axes string `toml:"axes"`
	// Rescale is CONVERT or FIT.
	Rescale RescaleMode `toml:"rescale"`
	// ScaleFactor converts file units to scene units in CONVERT mode.
	ScaleFactor float32 `toml:"scale_factor"`
	// DesiredSize is the target bounds size in FIT mode.
	DesiredSize float32 `toml:"desired_size"`
	// Recenter moves the bounds center to the origin.
	Recenter bool `toml:"recenter"`
	// ColorSpace is the color space the host wants vertex colors in: "linear" or "srgb".
	ColorSpace string `toml:"color_space"`
	// StrictAccessors rejects accessors shorter than their declared count
	// instead of zero-padding them.
	StrictAccessors bool `toml:"strict_accessors"`
	// MaxVertsPerMesh is the largest vertex count one output mesh may address.
	MaxVertsPerMesh int `toml:"max_verts_per_mesh"`
	// CacheSize bounds the number of imported models the loader keeps.
	CacheSize int `toml:"cache_size"`
	// Workers bounds concurrent imports in LoadAll.
	Workers int `toml:"workers"`
}

// DefaultOptions returns the options used when no file is given.
//
// Returns:
//   - Options: the default configuration
func DefaultOptions() Options {
	return Options{
		Export: ExportOptions{
			Version:      2,
			Generator:    "tilt-brush-sub010",
			CopyTextures: true,
		},
		Import: ImportOptions{
			Rescale:         RescaleConvert,
			ScaleFactor:     1,
			DesiredSize:     1,
			ColorSpace:      common.ColorSpaceLinear.String(),
			MaxVertsPerMesh: 65534,
			CacheSize:       64,
			Workers:         4,
		},
	}
}

// Load reads a TOML file on top of DefaultOptions.
//
// Parameters:
//   - path: the TOML file path
//
// Returns:
//   - Options: defaults overridden by the file's values
//   - error: error if the file cannot be read, decoded or validated
func Load(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads TOML from r on top of DefaultOptions.
//
// Parameters:
//   - r: the TOML source
//
// Returns:
//   - Options: defaults overridden by the decoded values
//   - error: error if decoding or validation fails
func Decode(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	md, err := toml.NewDecoder(r).Decode(&opts)
	if err != nil {
		return Options{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks option values that the decoder cannot.
//
// Returns:
//   - error: the first invalid setting found, or nil
func (o Options) Validate() error {
	if !common.SchemaVersion(o.Export.Version).Valid() {
		return fmt.Errorf("export.version must be 1 or 2, got %d", o.Export.Version)
	}
	if o.Export.Axes != "" {
		if _, err := common.AxisConventionByName(o.Export.Axes); err != nil {
			return fmt.Errorf("export.axes: %w", err)
		}
	}
	if o.Import.Axes != "" {
		if _, err := common.AxisConventionByName(o.Import.Axes); err != nil {
			return fmt.Errorf("import.axes: %w", err)
		}
	}
	switch o.Import.Rescale {
	case RescaleConvert, RescaleFit:
	default:
		return fmt.Errorf("import.rescale must be CONVERT or FIT, got %q", o.Import.Rescale)
	}
	if o.Import.ScaleFactor <= 0 {
		return fmt.Errorf("import.scale_factor must be positive")
	}
	if o.Import.Rescale == RescaleFit && o.Import.DesiredSize <= 0 {
		return fmt.Errorf("import.desired_size must be positive in FIT mode")
	}
	if _, err := o.Import.HostColorSpace(); err != nil {
		return err
	}
	if o.Import.MaxVertsPerMesh < 8 {
		return fmt.Errorf("import.max_verts_per_mesh must be at least 8")
	}
	return nil
}

// SchemaVersion returns the export schema revision.
func (e ExportOptions) SchemaVersion() common.SchemaVersion {
	return common.SchemaVersion(e.Version)
}

// AxisConvention resolves the export axis convention, falling back to the
// convention of the configured schema version.
func (e ExportOptions) AxisConvention() common.AxisConvention {
	ac, err := common.AxisConventionByName(e.Axes)
	if err != nil {
		return common.DefaultAxisConvention(e.SchemaVersion())
	}
	return ac
}

// HostColorSpace parses ColorSpace.
//
// Returns:
//   - common.ColorSpace: the parsed color space
//   - error: error if the value is not "linear" or "srgb"
func (i ImportOptions) HostColorSpace() (common.ColorSpace, error) {
	switch i.ColorSpace {
	case "linear", "":
		return common.ColorSpaceLinear, nil
	case "srgb":
		return common.ColorSpaceSRGB, nil
	}
	return common.ColorSpaceUnknown, fmt.Errorf("import.color_space must be linear or srgb, got %q", i.ColorSpace)
}

// AxisConvention resolves the axis convention assumed for an imported file,
// falling back to the convention of the file's schema version.
//
// Parameters:
//   - v: the schema version the file was written in
//
// Returns:
//   - common.AxisConvention: the configured or default convention
func (i ImportOptions) AxisConvention(v common.SchemaVersion) common.AxisConvention {
	ac, err := common.AxisConventionByName(i.Axes)
	if err != nil {
		return common.DefaultAxisConvention(v)
	}
	return ac
}
