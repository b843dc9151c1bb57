// internal/config/root.go
//
// Deployment root discovery.
//
// Notes
// -----
//   • The root anchors `app.basePath` and the optional conf/opensis.yaml.
//   • OPENSIS_ROOT wins; otherwise the nearest ancestor holding the YAML.

package config

import (
	"os"
	"path/filepath"
)

// FileName is the optional YAML layer, looked up under <root>/conf/.
const FileName = "opensis.yaml"

/*──────────────────────────── root discovery ───────────────────────────────*/

// RootDir resolves OPENSIS_ROOT or climbs directories until
// conf/opensis.yaml is found.  Falls back to the executable's parent when it
// lives in bin/, then to the working directory.
func RootDir() string {
	if r := os.Getenv("OPENSIS_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	if dir, ok := climb(wd); ok {
		return dir
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

// climb walks from dir toward / and returns the first directory holding
// conf/opensis.yaml.
func climb(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", FileName)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			return "", false
		}
		dir = parent
	}
}
