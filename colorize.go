package nerfmesh

import (
	"fmt"

	"github.com/soypat/nerfmesh/batch"
	"gonum.org/v1/gonum/spatial/r3"
)

// Colorize evaluates color at each point and returns one RGB color per point
// in input order. The color field must produce 3 or 4 channels; a fourth
// (alpha) channel is dropped. A nil field returns nil colors.
func Colorize(ev *batch.Evaluator, color batch.Field, points []r3.Vec) ([][3]float64, error) {
	if color == nil {
		return nil, nil
	}
	nc := color.Channels()
	if nc != 3 && nc != 4 {
		return nil, fmt.Errorf("color field must produce 3 or 4 channels, got %d", nc)
	}
	if ev == nil {
		ev = &batch.Evaluator{}
	}
	raw, err := ev.Evaluate(color, points, nil)
	if err != nil {
		return nil, err
	}
	colors := make([][3]float64, len(points))
	for i := range colors {
		copy(colors[i][:], raw[i*nc:i*nc+3])
	}
	return colors, nil
}
