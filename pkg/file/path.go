package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of the final path element, appending
// the extension when the name has none.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if lastDot <= 0 {
		return filepath.Join(dir, filename+ext)
	}

	return filepath.Join(dir, filename[:lastDot]+ext)
}

// LowerExt returns the lower-cased extension of the final path element,
// including the leading dot, with any query string stripped.
func LowerExt(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.ToLower(filepath.Ext(path))
}
