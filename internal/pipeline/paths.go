package pipeline

import (
	"os"
	"path/filepath"
	"strings"
)

// sourceModelName derives a source model's basename by scanning its
// directory for a *.prj file, matching spec.md §4.6.1's "scans the
// directory for a valid set of source files" discovery rule rather than
// assuming the model's name matches its containing directory's name. Falls
// back to the directory's own basename when no .prj file is present, so a
// genuinely empty or invalid directory still fails NotASourceModel instead
// of silently matching nothing.
func sourceModelName(sourceDir string) string {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return filepath.Base(filepath.Clean(sourceDir))
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if strings.HasSuffix(entry.Name(), ".prj") {
			return strings.TrimSuffix(entry.Name(), ".prj")
		}
	}

	return filepath.Base(filepath.Clean(sourceDir))
}

// planRelativePath resolves a plan's geometry/flow file reference, which
// rasio stores relative to the source model directory, against that directory.
func planRelativePath(sourceDir, relative string) string {
	if filepath.IsAbs(relative) {
		return relative
	}

	return filepath.Join(sourceDir, relative)
}
