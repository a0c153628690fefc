package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportMesh writes m to path, creating missing parent directories.
// The format is chosen by extension: ".ply" (with vertex colors) or ".stl"
// (geometry only). Geometry is written as is, without merging vertices.
func ExportMesh(path string, m *Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ply" && ext != ".stl" {
		return fmt.Errorf("unsupported mesh format %q", ext)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if ext == ".stl" {
		return CreateSTL(path, m.Renderer())
	}
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	if err := WritePLY(fp, m); err != nil {
		return err
	}
	return fp.Close()
}
