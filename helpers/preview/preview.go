// Package preview renders extracted meshes to images for quick inspection.
package preview

import (
	"errors"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/nerfmesh/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// View configures the camera and image of a preview.
type View struct {
	// what position (point) to look at
	LookAt r3.Vec
	// which way is up (direction)
	Up r3.Vec
	// where the camera/eye located at (point)
	Eye       r3.Vec
	Near, Far float64
	// Width and Height of the output image in pixels.
	Width, Height int
	// Supersampling factor. Values below 1 are treated as 1.
	Scale int
	// Fovy is the vertical field of view in degrees.
	Fovy float64
	// Color and Background are hex colors.
	Color, Background string
}

// DefaultView looks at the origin from (3,3,3) with z up.
func DefaultView() View {
	return View{
		Up:         r3.Vec{Z: 1},
		Eye:        r3.Vec{X: 3, Y: 3, Z: 3},
		Near:       1,
		Far:        10,
		Width:      640,
		Height:     480,
		Scale:      2,
		Fovy:       30,
		Color:      "#468966",
		Background: "#FFF8E3",
	}
}

// Image renders m fitted in a bi-unit cube centered at the origin
// with phong shading.
func Image(m *render.Mesh, view View) (image.Image, error) {
	if len(m.Triangles) == 0 {
		return nil, errors.New("cannot preview empty mesh")
	}
	if view.Width <= 0 || view.Height <= 0 {
		return nil, errors.New("invalid preview size")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	scale := view.Scale
	if scale < 1 {
		scale = 1
	}
	tris := make([]*fauxgl.Triangle, 0, len(m.Triangles))
	for i := range m.Triangles {
		t := m.Triangle(i)
		if t.Degenerate(0) {
			continue
		}
		tris = append(tris, fauxgl.NewTriangleForPoints(vec(t[0]), vec(t[1]), vec(t[2])))
	}
	mesh := fauxgl.NewTriangleMesh(tris)

	var (
		eye    = vec(view.Eye)                         // camera position
		center = vec(view.LookAt)                      // view center position
		up     = vec(view.Up)                          // up vector
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize() // light direction
	)
	// fit mesh in a bi-unit cube centered at the origin
	mesh.BiUnitCube()
	// create a rendering context
	context := fauxgl.NewContext(view.Width*scale, view.Height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor(view.Background))
	// create transformation matrix and light direction
	aspect := float64(view.Width) / float64(view.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(view.Fovy, aspect, view.Near, view.Far)
	// use builtin phong shader
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor(view.Color)
	context.Shader = shader
	context.DrawMesh(mesh)
	// downsample image for antialiasing
	img := context.Image()
	if scale > 1 {
		img = resize.Resize(uint(view.Width), uint(view.Height), img, resize.Bilinear)
	}
	return img, nil
}

// SavePNG renders m and writes the image to path.
func SavePNG(path string, m *render.Mesh, view View) error {
	img, err := Image(m, view)
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func vec(v r3.Vec) fauxgl.Vector {
	return fauxgl.V(v.X, v.Y, v.Z)
}
