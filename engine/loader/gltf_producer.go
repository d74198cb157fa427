package loader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Producer identifies the application that wrote a file.
type Producer int

const (
	// ProducerUnknown means the file is read exactly as the glTF schema says.
	ProducerUnknown Producer = iota
	// ProducerTiltBrush files carry brush materials and nonconforming attributes.
	ProducerTiltBrush
	// ProducerBlocks files carry Blocks surface-shader materials.
	ProducerBlocks
)

func (p Producer) String() string {
	switch p {
	case ProducerTiltBrush:
		return "Tilt Brush"
	case ProducerBlocks:
		return "Blocks"
	default:
		return "unknown"
	}
}

// Version is a major.minor application version.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// ToolkitVersion is the data version this importer understands. Files may
// declare a newer requirement in asset.extras.
var ToolkitVersion = Version{Major: 23, Minor: 0}

// requiredToolkitVersionKey is the asset.extras key holding a file's minimum importer version.
const requiredToolkitVersionKey = "requiredTiltBrushToolkitVersion"

var (
	tiltBrushGeneratorRe = regexp.MustCompile(`^Tilt Brush ([0-9]+)\.([0-9]+)`)
	blocksGeneratorRe    = regexp.MustCompile(`^Blocks ([0-9]+)\.([0-9]+)`)
	versionRe            = regexp.MustCompile(`^([0-9]+)\.([0-9]+)`)
)

// parseVersion converts the two submatches of a major.minor regexp.
func parseVersion(m []string) (Version, bool) {
	if len(m) != 3 {
		return Version{}, false
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

// inferProducer identifies the application from asset.generator.
//
// Blocks generators are matched loosely: some builds omit the version and the
// glTF 1-to-2 upgrader only mentions "Google Blocks". Both count as Blocks 1.0.
//
// Parameters:
//   - generator: the asset.generator string
//
// Returns:
//   - Producer: the application, or ProducerUnknown
//   - Version: its version; zero when unknown
func inferProducer(generator string) (Producer, Version) {
	if v, ok := parseVersion(tiltBrushGeneratorRe.FindStringSubmatch(generator)); ok {
		return ProducerTiltBrush, v
	}
	if v, ok := parseVersion(blocksGeneratorRe.FindStringSubmatch(generator)); ok {
		return ProducerBlocks, v
	}
	if strings.HasPrefix(generator, "Blocks") || strings.Contains(generator, "Google Blocks") {
		return ProducerBlocks, Version{Major: 1, Minor: 0}
	}
	return ProducerUnknown, Version{}
}

// checkCompatibility warns when the file asks for a newer importer than this one.
//
// Parameters:
//   - logger: receives the warning
//   - extras: the flattened asset.extras
//
// Returns:
//   - bool: true if a warning was logged
func checkCompatibility(logger *logrus.Logger, extras map[string]string) bool {
	required, ok := parseVersion(versionRe.FindStringSubmatch(extras[requiredToolkitVersionKey]))
	if !ok || !ToolkitVersion.Less(required) {
		return false
	}
	logger.WithFields(logrus.Fields{
		"required": required.String(),
		"current":  ToolkitVersion.String(),
	}).Warnf("file specifies %s %s", requiredToolkitVersionKey, required)
	return true
}
