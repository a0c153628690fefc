package d3

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is a 3d axis aligned bounding box.
type Box r3.Box

// Validate returns an error if any axis has Min >= Max or a non-finite bound.
func (a Box) Validate() error {
	if !Finite(a.Min) || !Finite(a.Max) {
		return errors.New("non-finite box bound")
	}
	if a.Min.X >= a.Max.X || a.Min.Y >= a.Max.Y || a.Min.Z >= a.Max.Z {
		return errors.New("box minimum must be less than maximum on every axis")
	}
	return nil
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Contains checks if the 3d box contains the given vector (considering bounds as inside).
func (a Box) Contains(v r3.Vec) bool {
	return a.Min.X <= v.X && a.Min.Y <= v.Y && a.Min.Z <= v.Z &&
		v.X <= a.Max.X && v.Y <= a.Max.Y && v.Z <= a.Max.Z
}

// Unit maps v from the box into the unit cube so that Min maps to
// the origin and Max to (1,1,1). Points outside the box map outside the cube.
func (a Box) Unit(v r3.Vec) r3.Vec {
	return DivElem(r3.Sub(v, a.Min), a.Size())
}

// Finite returns true if no component of v is NaN or infinite.
func Finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
