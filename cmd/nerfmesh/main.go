// Command nerfmesh extracts a triangle mesh from a scene function sampled on
// a dense lattice and saves it as a PLY or STL file.
//
// Extraction settings are read from a YAML configuration with the same layout
// as the scene model's training configuration. Flags override the mesh
// resolution and reference frame.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deadsy/sdfx/obj"
	"github.com/deadsy/sdfx/sdf"
	"github.com/schollz/progressbar/v3"
	"github.com/soypat/nerfmesh"
	"github.com/soypat/nerfmesh/batch"
	"github.com/soypat/nerfmesh/colormap"
	"github.com/soypat/nerfmesh/config"
	"github.com/soypat/nerfmesh/frame"
	"github.com/soypat/nerfmesh/grid"
	"github.com/soypat/nerfmesh/helpers/preview"
	"github.com/soypat/nerfmesh/scene"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/spatial/r3"
)

func main() {
	var (
		configPath  string
		sceneName   string
		gridPath    string
		colorName   string
		outputPath  string
		previewPath string
		slicePath   string
		resolution  int
		voxelSize   float64
		frameFlag   string
		verbose     bool
	)
	flag.StringVar(&configPath, "config", "", "YAML scene configuration (default: unit bounds around the scene)")
	flag.StringVar(&sceneName, "scene", "sphere", "scene function: sphere, vsphere, box, bolt or grid")
	flag.StringVar(&gridPath, "grid", "", "JSON voxel grid for -scene grid")
	flag.StringVar(&colorName, "color", "none", "vertex colors: none or position")
	flag.StringVar(&outputPath, "output", "output/mesh.ply", "output mesh file (.ply or .stl)")
	flag.StringVar(&previewPath, "preview", "", "optional PNG preview of the mesh")
	flag.StringVar(&slicePath, "slice", "", "optional PNG heatmap of the field through the lattice center")
	flag.IntVar(&resolution, "resolution", 0, "samples per axis, overrides the configuration")
	flag.Float64Var(&voxelSize, "voxel", 0, "voxel size, overrides the configuration")
	flag.StringVar(&frameFlag, "frame", "", "camera to world transform as 16 comma separated row major values")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	field, bounds, err := sceneField(sceneName, gridPath)
	essentials.Must(err)

	var opts nerfmesh.Options
	if configPath != "" {
		cfg, err := config.Load(configPath)
		essentials.Must(err)
		opts, err = nerfmesh.OptionsFromConfig(cfg)
		essentials.Must(err)
	} else {
		opts = nerfmesh.Options{
			Bounds:     bounds,
			Sizing:     grid.Sizing{Resolution: 64},
			Truncation: nerfmesh.DefaultTruncation,
		}
	}
	if resolution != 0 || voxelSize != 0 {
		opts.Sizing = grid.Sizing{Resolution: resolution, VoxelSize: voxelSize}
	}
	if frameFlag != "" {
		c2w, err := parseFrame(frameFlag)
		essentials.Must(err)
		opts.CameraToWorld = &c2w
	}

	var color batch.Field
	switch colorName {
	case "none":
	case "position":
		color = scene.PositionColor{Bounds: opts.Bounds}
	default:
		essentials.Die("unknown color function:", colorName)
	}

	bars := make(map[nerfmesh.Stage]*progressbar.ProgressBar)
	opts.OnChunk = func(stage nerfmesh.Stage, done, total int) {
		bar, ok := bars[stage]
		if !ok {
			bar = progressbar.Default(int64(total), "query "+string(stage))
			bars[stage] = bar
		}
		bar.Set(done)
		if done == total {
			bar.Close()
		}
	}

	if slicePath != "" {
		essentials.Must(saveSlice(slicePath, field, opts))
	}
	mesh, err := nerfmesh.ExtractToFile(outputPath, field, color, opts)
	essentials.Must(err)
	if previewPath != "" {
		essentials.Must(preview.SavePNG(previewPath, mesh, preview.DefaultView()))
		slog.Info("preview saved", slog.String("path", previewPath))
	}
}

// sceneField returns the scene function to mesh and a box around it.
func sceneField(name, gridPath string) (batch.Field, r3.Box, error) {
	unit := r3.Box{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}
	switch name {
	case "sphere":
		return scene.Sphere{Radius: 0.8}, unit, nil
	case "vsphere":
		f, err := scene.NewVectorized(&scene.VecSphere{R: 0.8}, nil)
		return f, unit, err
	case "box":
		s, err := sdf.Box3D(sdf.V3{X: 1.2, Y: 0.8, Z: 1.6}, 0.1)
		if err != nil {
			return nil, r3.Box{}, err
		}
		f, err := scene.NewSDFX(s)
		if err != nil {
			return nil, r3.Box{}, err
		}
		return f, padded(f.Bounds()), nil
	case "bolt":
		s, err := obj.Bolt(&obj.BoltParms{
			Thread:      "npt_1/2",
			Style:       "hex",
			Tolerance:   0.1,
			TotalLength: 20,
			ShankLength: 10,
		})
		if err != nil {
			return nil, r3.Box{}, err
		}
		f, err := scene.NewSDFX(s)
		if err != nil {
			return nil, r3.Box{}, err
		}
		return f, padded(f.Bounds()), nil
	case "grid":
		if gridPath == "" {
			return nil, r3.Box{}, fmt.Errorf("-scene grid requires -grid")
		}
		fp, err := os.Open(gridPath)
		if err != nil {
			return nil, r3.Box{}, err
		}
		defer fp.Close()
		g, err := scene.ReadVoxelGrid(fp, unit)
		if err != nil {
			return nil, r3.Box{}, err
		}
		return g, unit, nil
	}
	return nil, r3.Box{}, fmt.Errorf("unknown scene %q", name)
}

// padded grows b by 10% on every side so surfaces on the box faces close.
func padded(b r3.Box) r3.Box {
	pad := r3.Scale(0.1, r3.Sub(b.Max, b.Min))
	return r3.Box{Min: r3.Sub(b.Min, pad), Max: r3.Add(b.Max, pad)}
}

func parseFrame(s string) (frame.Transform, error) {
	fields := strings.Split(s, ",")
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return frame.Transform{}, fmt.Errorf("frame value %d: %w", i, err)
		}
		vals[i] = v
	}
	t, err := frame.NewTransform(vals)
	if err != nil {
		return frame.Transform{}, err
	}
	if _, err := t.Inv(); err != nil {
		return frame.Transform{}, err
	}
	return t, nil
}

// saveSlice writes a heatmap of the scene function over the plane through
// the center of the lattice bounds, perpendicular to z.
func saveSlice(path string, field batch.Field, opts nerfmesh.Options) error {
	const size = 256
	if field.Channels() != 1 {
		return fmt.Errorf("slice needs single channel field, got %d", field.Channels())
	}
	b := opts.Bounds
	if opts.MarchingCubesBounds != nil {
		b = *opts.MarchingCubesBounds
	}
	z := (b.Min.Z + b.Max.Z) / 2
	pts := make([]r3.Vec, 0, size*size)
	for j := 0; j < size; j++ {
		// Image rows grow downwards.
		y := b.Max.Y - (b.Max.Y-b.Min.Y)*float64(j)/(size-1)
		for i := 0; i < size; i++ {
			x := b.Min.X + (b.Max.X-b.Min.X)*float64(i)/(size-1)
			pts = append(pts, r3.Vec{X: x, Y: y, Z: z})
		}
	}
	query, err := nerfmesh.ScenePoints(pts, opts)
	if err != nil {
		return err
	}
	vals, err := batch.Evaluate(field, query, nil, opts.ChunkSize)
	if err != nil {
		return err
	}
	img, vmin, vmax, err := colormap.Image(vals, size, size, colormap.Options{})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	if err := png.Encode(fp, img); err != nil {
		return err
	}
	slog.Info("slice saved", slog.String("path", path), slog.Float64("vmin", vmin), slog.Float64("vmax", vmax))
	return fp.Close()
}
