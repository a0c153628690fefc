// Package nerfmesh extracts triangle meshes from implicit scene functions
// by sampling them on a dense lattice and running marching cubes.
//
// The scene function is queried in lattice coordinates, optionally mapped into
// a reference camera frame and normalized into the unit cube. Extracted
// vertices are returned in metric world units and may be colored by a second
// query.
package nerfmesh

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/soypat/nerfmesh/batch"
	"github.com/soypat/nerfmesh/frame"
	"github.com/soypat/nerfmesh/grid"
	"github.com/soypat/nerfmesh/internal/d3"
	"github.com/soypat/nerfmesh/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTruncation is the marching cubes truncation used when
// Options.Truncation is zero.
const DefaultTruncation = 3.0

// Stage identifies the query being evaluated when progress is reported.
type Stage string

const (
	StageScene Stage = "scene"
	StageColor Stage = "color"
)

// Options configures mesh extraction.
type Options struct {
	// Bounds is the scene bounding box. Query points are normalized by it
	// when Normalize is set.
	Bounds r3.Box
	// MarchingCubesBounds is the region the lattice spans. nil uses Bounds.
	MarchingCubesBounds *r3.Box
	// Sizing selects lattice density. Exactly one field must be set.
	grid.Sizing
	Isolevel float64
	// Truncation skips cells whose samples spread more than this.
	// Zero selects DefaultTruncation. Negative or +Inf disables truncation.
	Truncation float64
	// Normalize maps query points into the unit cube using Bounds before
	// evaluating the scene function, as hash grid encodings require.
	Normalize bool
	// ScaleFactor and Translation convert world units to metric units:
	// metric = world/ScaleFactor - Translation. Zero ScaleFactor is treated as 1.
	ScaleFactor float64
	Translation r3.Vec
	// CameraToWorld, if set, is the pose of the frame the scene and color
	// functions are defined in. Geometry is still returned in world units.
	CameraToWorld *frame.Transform
	// ChunkSize is the maximum number of points per query call.
	// Non-positive selects batch.DefaultChunkSize.
	ChunkSize int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnChunk, if set, is called after every evaluated chunk.
	OnChunk func(stage Stage, done, total int)
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Options) evaluator(stage Stage) *batch.Evaluator {
	ev := &batch.Evaluator{ChunkSize: o.ChunkSize}
	if o.OnChunk != nil {
		ev.OnChunk = func(done, total int) { o.OnChunk(stage, done, total) }
	}
	return ev
}

func (o *Options) truncation() float64 {
	if o.Truncation == 0 {
		return DefaultTruncation
	}
	return o.Truncation
}

func (o *Options) validate() error {
	if err := d3.Box(o.Bounds).Validate(); err != nil {
		return fmt.Errorf("%w: %v", grid.ErrBounds, err)
	}
	if o.ScaleFactor < 0 || math.IsNaN(o.ScaleFactor) || math.IsInf(o.ScaleFactor, 0) {
		return fmt.Errorf("invalid scale factor %g", o.ScaleFactor)
	}
	if !d3.Finite(o.Translation) {
		return errors.New("non-finite translation")
	}
	return nil
}

// Extract samples scene over the lattice described by opts, extracts the
// isosurface at opts.Isolevel and rescales the vertices into metric units.
// If color is not nil every vertex is colored by it.
//
// scene must produce a single channel. A field that never crosses the
// isolevel yields an empty mesh and no error.
func Extract(scene, color batch.Field, opts Options) (*render.Mesh, error) {
	if scene == nil {
		return nil, errors.New("nil scene function")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.logger()
	mcBounds := opts.Bounds
	if opts.MarchingCubesBounds != nil {
		mcBounds = *opts.MarchingCubesBounds
	}
	lattice, err := grid.Build(mcBounds, opts.Sizing)
	if err != nil {
		return nil, err
	}
	rs := Rescaler{
		Lattice:       lattice,
		ScaleFactor:   opts.ScaleFactor,
		Translation:   opts.Translation,
		CameraToWorld: opts.CameraToWorld,
	}

	query, err := ScenePoints(lattice.Points(), opts)
	if err != nil {
		return nil, err
	}
	vals, err := opts.evaluator(StageScene).Evaluate(scene, query, nil)
	if err != nil {
		return nil, err
	}
	field, err := render.NewField(lattice.Shape(), scene.Channels(), vals)
	if err != nil {
		return nil, err
	}
	field, err = field.Squeeze()
	if err != nil {
		return nil, err
	}

	sh := lattice.Shape()
	log.Info("running marching cubes", slog.Int("nx", sh[0]), slog.Int("ny", sh[1]), slog.Int("nz", sh[2]))
	mesh, err := render.MarchingCubes(field, opts.Isolevel, opts.truncation())
	if err != nil {
		return nil, err
	}
	log.Info("marching cubes done", slog.Int("vertices", len(mesh.Vertices)), slog.Int("triangles", len(mesh.Triangles)))
	if err := rs.Apply(mesh.Vertices); err != nil {
		return nil, err
	}
	if color == nil {
		return mesh, nil
	}

	// Geometry stays in metric world units, only the color query sees
	// local or normalized coordinates.
	var cpts []r3.Vec
	switch {
	case opts.CameraToWorld != nil:
		cpts, err = rs.ToLocal(nil, mesh.Vertices)
		if err != nil {
			return nil, err
		}
	case opts.Normalize:
		cpts = make([]r3.Vec, len(mesh.Vertices))
		copy(cpts, mesh.Vertices)
		normalizeInto(cpts, opts.Bounds)
	default:
		cpts = mesh.Vertices
	}
	mesh.Colors, err = Colorize(opts.evaluator(StageColor), color, cpts)
	if err != nil {
		return nil, err
	}
	return mesh, nil
}

// ScenePoints maps world points to the coordinates the scene function is
// queried in. Points are moved into the frame of opts.CameraToWorld when set
// and then into the unit cube of opts.Bounds when opts.Normalize is set.
// world is not modified.
func ScenePoints(world []r3.Vec, opts Options) ([]r3.Vec, error) {
	rs := Rescaler{CameraToWorld: opts.CameraToWorld}
	query, err := rs.ToLocal(nil, world)
	if err != nil {
		return nil, err
	}
	if opts.Normalize {
		normalizeInto(query, opts.Bounds)
	}
	return query, nil
}

// ExtractToFile runs Extract and writes the result to path.
// See render.ExportMesh for supported formats.
func ExtractToFile(path string, scene, color batch.Field, opts Options) (*render.Mesh, error) {
	mesh, err := Extract(scene, color, opts)
	if err != nil {
		return nil, err
	}
	if err := render.ExportMesh(path, mesh); err != nil {
		return mesh, err
	}
	opts.logger().Info("mesh saved", slog.String("path", path))
	return mesh, nil
}

func normalizeInto(pts []r3.Vec, bounds r3.Box) {
	b := d3.Box(bounds)
	for i := range pts {
		pts[i] = b.Unit(pts[i])
	}
}
