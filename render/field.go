package render

import (
	"errors"
	"fmt"
)

// Field is a dense sampled field on a 3D lattice with a trailing channel
// dimension. Data is stored with x varying slowest and the channel fastest.
type Field struct {
	Shape    [3]int
	Channels int
	Data     []float64
}

// NewField wraps data as a Field and checks its length matches shape and channels.
func NewField(shape [3]int, channels int, data []float64) (Field, error) {
	f := Field{Shape: shape, Channels: channels, Data: data}
	return f, f.validate()
}

func (f Field) validate() error {
	if f.Shape[0] < 0 || f.Shape[1] < 0 || f.Shape[2] < 0 {
		return fmt.Errorf("negative field shape %v", f.Shape)
	}
	if f.Channels < 1 {
		return errors.New("field needs at least one channel")
	}
	if want := f.Shape[0] * f.Shape[1] * f.Shape[2] * f.Channels; len(f.Data) != want {
		return fmt.Errorf("field data length %d does not match shape %v with %d channels", len(f.Data), f.Shape, f.Channels)
	}
	return nil
}

// Index returns the offset of channel c of sample (i,j,k) in Data.
func (f Field) Index(i, j, k, c int) int {
	return ((i*f.Shape[1]+j)*f.Shape[2]+k)*f.Channels + c
}

// At returns channel c of sample (i,j,k).
func (f Field) At(i, j, k, c int) float64 {
	return f.Data[f.Index(i, j, k, c)]
}

// Squeeze drops a trailing singleton channel, returning a scalar field.
// Fields with more than one channel cannot be squeezed.
func (f Field) Squeeze() (Field, error) {
	if err := f.validate(); err != nil {
		return Field{}, err
	}
	if f.Channels != 1 {
		return Field{}, fmt.Errorf("cannot squeeze field with %d channels to a scalar field", f.Channels)
	}
	return f, nil
}
