package render

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WritePLY writes the mesh as a binary little endian PLY file. Vertices and
// faces are written in mesh order without welding, so vertex i of the file
// is vertex i of the mesh. Colors, when present, are written as 8 bit RGB.
func WritePLY(w io.Writer, m *Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	hasColor := m.Colors != nil
	fmt.Fprintf(bw, "ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(bw, "element vertex %d\n", len(m.Vertices))
	fmt.Fprintf(bw, "property float x\nproperty float y\nproperty float z\n")
	if hasColor {
		fmt.Fprintf(bw, "property uchar red\nproperty uchar green\nproperty uchar blue\n")
	}
	fmt.Fprintf(bw, "element face %d\n", len(m.Triangles))
	fmt.Fprintf(bw, "property list uchar int vertex_indices\n")
	fmt.Fprintf(bw, "end_header\n")

	var vbuf [15]byte
	for i, v := range m.Vertices {
		put3F32(vbuf[:], f32From(v))
		n := 12
		if hasColor {
			c := m.Colors[i]
			vbuf[12] = colorByte(c[0])
			vbuf[13] = colorByte(c[1])
			vbuf[14] = colorByte(c[2])
			n = 15
		}
		if _, err := bw.Write(vbuf[:n]); err != nil {
			return err
		}
	}
	var fbuf [13]byte
	fbuf[0] = 3
	for _, tri := range m.Triangles {
		binary.LittleEndian.PutUint32(fbuf[1:], uint32(tri[0]))
		binary.LittleEndian.PutUint32(fbuf[5:], uint32(tri[1]))
		binary.LittleEndian.PutUint32(fbuf[9:], uint32(tri[2]))
		if _, err := bw.Write(fbuf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// colorByte maps a [0,1] color component to a byte, clamping out of range values.
func colorByte(c float64) uint8 {
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return uint8(math.Round(c * 255))
}
