package index

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// excludedDirs are directory names that are never descended into. The list
// is part of the public behavior of every workspace-walking operation.
var excludedDirs = map[string]bool{
	".git":           true,
	"__pycache__":    true,
	"node_modules":   true,
	".venv":          true,
	"venv":           true,
	"target":         true,
	"build":          true,
	"dist":           true,
	".tox":           true,
	".mypy_cache":    true,
	".pytest_cache":  true,
	".eggs":          true,
	".cache":         true,
	".coverage":      true,
	".hypothesis":    true,
	".nox":           true,
	".ruff_cache":    true,
	"__pypackages__": true,
	".pants.d":       true,
	".pyre":          true,
	".pytype":        true,
	"vendor":         true,
	"third_party":    true,
	".bundle":        true,
	".next":          true,
	".nuxt":          true,
	".svelte-kit":    true,
	".turbo":         true,
	".parcel-cache":  true,
	"coverage":       true,
	".nyc_output":    true,
	".zig-cache":     true,
}

// binaryExtensions are file extensions skipped without reading content.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true,
	".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".class": true, ".jar": true, ".war": true,
	".pyc": true, ".pyo": true, ".wasm": true, ".bin": true, ".dat": true,
	".db": true, ".sqlite": true, ".woff": true, ".woff2": true, ".ttf": true,
	".otf": true, ".eot": true, ".mp3": true, ".mp4": true, ".avi": true,
	".mov": true, ".flac": true, ".ogg": true,
}

// IsExcludedDir reports whether a directory name is skipped by workspace
// walks, including the *.egg-info convention.
func IsExcludedDir(name string) bool {
	return excludedDirs[name] || strings.HasSuffix(name, ".egg-info")
}

// IsBinaryFile reports whether a file is skipped by extension.
func IsBinaryFile(name string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(name))]
}

// WalkSourceFiles visits every non-excluded regular file under root. Hidden
// directories are skipped; hidden files are skipped too.
func WalkSourceFiles(root string, visit func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (IsExcludedDir(name) || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || IsBinaryFile(name) {
			return nil
		}
		visit(path)
		return nil
	})
}
