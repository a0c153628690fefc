package render_test

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/nerfmesh/render"
	"gonum.org/v1/gonum/spatial/r3"
)

func readPLYHeader(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		line = strings.TrimSuffix(line, "\n")
		lines = append(lines, line)
		if line == "end_header" {
			return lines
		}
	}
}

func TestWritePLY(t *testing.T) {
	m := &render.Mesh{
		Vertices:  []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}},
		Triangles: [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
		Colors:    [][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {2, -1, 0.5}},
	}
	var b bytes.Buffer
	if err := render.WritePLY(&b, m); err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(&b)
	header := readPLYHeader(t, r)
	for _, want := range []string{
		"format binary_little_endian 1.0",
		"element vertex 4",
		"property uchar red",
		"element face 4",
		"property list uchar int vertex_indices",
	} {
		found := false
		for _, line := range header {
			found = found || line == want
		}
		if !found {
			t.Errorf("header missing %q", want)
		}
	}
	var vert struct {
		X, Y, Z float32
		R, G, B uint8
	}
	for i, v := range m.Vertices {
		if err := binary.Read(r, binary.LittleEndian, &vert); err != nil {
			t.Fatal(err)
		}
		if float64(vert.X) != v.X || float64(vert.Y) != v.Y || float64(vert.Z) != v.Z {
			t.Errorf("vertex %d: got %v, want %v", i, vert, v)
		}
	}
	// Last vertex color is clamped.
	if vert.R != 255 || vert.G != 0 || vert.B != 128 {
		t.Errorf("clamped color: got %d %d %d", vert.R, vert.G, vert.B)
	}
	var face struct {
		N       uint8
		A, B, C int32
	}
	for i, tri := range m.Triangles {
		if err := binary.Read(r, binary.LittleEndian, &face); err != nil {
			t.Fatal(err)
		}
		if face.N != 3 || int(face.A) != tri[0] || int(face.B) != tri[1] || int(face.C) != tri[2] {
			t.Errorf("face %d: got %v, want %v", i, face, tri)
		}
	}
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Errorf("%d trailing bytes", len(rest))
	}
}

func TestWritePLYNoColor(t *testing.T) {
	m := sphereMesh(t, 10)
	var b bytes.Buffer
	if err := render.WritePLY(&b, m); err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(&b)
	header := readPLYHeader(t, r)
	for _, line := range header {
		if strings.Contains(line, "red") {
			t.Fatal("color property written for mesh without colors")
		}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	want := 12*len(m.Vertices) + 13*len(m.Triangles)
	if len(body) != want {
		t.Errorf("got %d body bytes, want %d", len(body), want)
	}
}

func TestWritePLYInvalid(t *testing.T) {
	m := &render.Mesh{
		Vertices:  []r3.Vec{{}, {X: 1}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	if err := render.WritePLY(&bytes.Buffer{}, m); err == nil {
		t.Error("expected error for out of range index")
	}
	m.Triangles = nil
	m.Colors = [][3]float64{{1, 1, 1}}
	if err := render.WritePLY(&bytes.Buffer{}, m); err == nil {
		t.Error("expected error for color count mismatch")
	}
}

func TestExportMesh(t *testing.T) {
	dir := t.TempDir()
	m := sphereMesh(t, 12)
	m.Colors = make([][3]float64, len(m.Vertices))
	for _, name := range []string{"a/b/mesh.ply", "c/mesh.stl", "mesh.PLY"} {
		path := filepath.Join(dir, name)
		if err := render.ExportMesh(path, m); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("%s: empty file", name)
		}
	}
	err := render.ExportMesh(filepath.Join(dir, "mesh.obj"), m)
	if err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestExportMeshEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"empty.ply", "empty.stl"} {
		path := filepath.Join(dir, "out", name)
		if err := render.ExportMesh(path, &render.Mesh{}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(dir, "out", "empty.ply"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(b, []byte("end_header\n")) {
		t.Error("empty PLY should end after header")
	}
	if !bytes.Contains(b, []byte("element vertex 0\n")) {
		t.Error("empty PLY should declare zero vertices")
	}
}

func TestExportMeshUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// Parent "directory" is a regular file.
	err := render.ExportMesh(filepath.Join(blocker, "mesh.ply"), &render.Mesh{})
	if err == nil {
		t.Error("expected error when parent is a file")
	}
}
