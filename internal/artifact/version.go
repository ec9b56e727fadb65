// Package artifact names and parses generated scene video files.
//
// The generator writes artifacts as <episode>/scene<index>_v<version>.mp4 and
// reports the relative path back on completion. When a status response omits
// the explicit version number, the trailing _v<N> segment of the path is the
// fallback source of truth.
package artifact

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultVersion is assumed when an output path carries no version segment.
const DefaultVersion = 1

var versionPattern = regexp.MustCompile(`_v(\d+)\.[A-Za-z0-9]+$`)

// ParseVersion extracts the artifact version from a generator output path.
// "ep1/scene3_v2.mp4" yields 2; paths without a trailing _v<N> segment yield
// DefaultVersion.
func ParseVersion(outputPath string) int64 {
	match := versionPattern.FindStringSubmatch(outputPath)
	if match == nil {
		return DefaultVersion
	}
	version, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || version <= 0 {
		return DefaultVersion
	}
	return version
}

// Filename builds the canonical artifact name for a scene revision.
func Filename(sceneIndex, version int64) string {
	return fmt.Sprintf("scene%d_v%d.mp4", sceneIndex, version)
}
