package nerfmesh

import (
	"github.com/soypat/nerfmesh/config"
	"github.com/soypat/nerfmesh/grid"
)

// OptionsFromConfig returns extraction options for a validated configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	bounds, err := cfg.Bounds()
	if err != nil {
		return Options{}, err
	}
	mcBounds, err := cfg.MarchingCubesBounds()
	if err != nil {
		return Options{}, err
	}
	c2w, err := cfg.CameraToWorld()
	if err != nil {
		return Options{}, err
	}
	trunc := DefaultTruncation
	if cfg.Mesh.Truncation != nil {
		trunc = *cfg.Mesh.Truncation
	}
	if trunc <= 0 {
		// An explicit 0 in the file disables truncation.
		trunc = -1
	}
	return Options{
		Bounds:              bounds,
		MarchingCubesBounds: mcBounds,
		Sizing: grid.Sizing{
			VoxelSize:  cfg.Mesh.VoxelFinal,
			Resolution: cfg.Mesh.Resolution,
		},
		Isolevel:      cfg.Mesh.Isolevel,
		Truncation:    trunc,
		Normalize:     cfg.Grid.TCNNEncoding,
		ScaleFactor:   cfg.Data.SCFactor,
		Translation:   cfg.Translation(),
		CameraToWorld: c2w,
		ChunkSize:     cfg.Mesh.ChunkSize,
	}, nil
}
