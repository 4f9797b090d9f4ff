// Package spatial provides the coordinate-system and ellipsoid value types
// consumed by the pipeline assembler (internal/pipeline): axis metadata,
// units, and the geometric helpers needed to complete a kernel's ellipsoid
// parameters or insert a height/radius dimension.
package spatial

import "math"

// Point2D is a coordinate pair in whatever unit and axis order its owning
// CoordinateSystem declares.
type Point2D struct {
	X float64
	Y float64
}

// Point3D extends Point2D with a third (height or radius) component.
type Point3D struct {
	X float64
	Y float64
	Z float64
}

// AxisDirection names the geometric direction an axis measures along.
type AxisDirection int

const (
	AxisOther AxisDirection = iota
	AxisEast
	AxisNorth
	AxisUp
	AxisGeocentricX
	AxisGeocentricY
	AxisGeocentricZ
)

// Unit is a linear or angular unit of measure. ToBase is the factor that
// converts a value in this unit to the unit's base (metre for linear,
// radian for angular).
type Unit struct {
	Name    string
	ToBase  float64
	Angular bool
}

// Common units used throughout grid geometries and CS normalization.
var (
	Metre  = Unit{Name: "metre", ToBase: 1.0, Angular: false}
	Degree = Unit{Name: "degree", ToBase: math.Pi / 180, Angular: true}
	Radian = Unit{Name: "radian", ToBase: 1.0, Angular: true}
)

// Axis describes one axis of a CoordinateSystem.
type Axis struct {
	Direction AxisDirection
	Unit      Unit
}

// CoordinateSystem is the external interface described in spec.md §6: an
// ordered set of axes with direction and unit metadata. Implementations are
// provided by collaborators (CRS authorities); geocore only reads axis
// count, direction, and unit to build normalization transforms.
type CoordinateSystem interface {
	Dimension() int
	Axis(i int) Axis
}

// Cartesian2D is a minimal two-axis (east, north) CoordinateSystem in the
// given unit, useful for tests and for kernels that don't need a full
// authority-backed CS.
type Cartesian2D struct {
	Unit Unit
}

func (c Cartesian2D) Dimension() int { return 2 }

func (c Cartesian2D) Axis(i int) Axis {
	switch i {
	case 0:
		return Axis{Direction: AxisEast, Unit: c.Unit}
	case 1:
		return Axis{Direction: AxisNorth, Unit: c.Unit}
	default:
		panic("spatial: axis index out of range for Cartesian2D")
	}
}

// Geographic2D is a two-axis (longitude, latitude) CoordinateSystem.
type Geographic2D struct {
	Unit Unit
}

func (g Geographic2D) Dimension() int { return 2 }

func (g Geographic2D) Axis(i int) Axis {
	switch i {
	case 0:
		return Axis{Direction: AxisEast, Unit: g.Unit}
	case 1:
		return Axis{Direction: AxisNorth, Unit: g.Unit}
	default:
		panic("spatial: axis index out of range for Geographic2D")
	}
}

// Geographic3D adds an ellipsoidal height axis to Geographic2D.
type Geographic3D struct {
	Unit       Unit
	HeightUnit Unit
}

func (g Geographic3D) Dimension() int { return 3 }

func (g Geographic3D) Axis(i int) Axis {
	switch i {
	case 0:
		return Axis{Direction: AxisEast, Unit: g.Unit}
	case 1:
		return Axis{Direction: AxisNorth, Unit: g.Unit}
	case 2:
		return Axis{Direction: AxisUp, Unit: g.HeightUnit}
	default:
		panic("spatial: axis index out of range for Geographic3D")
	}
}

// BoundingBox2D is a lon/lat (or easting/northing) rectangle in degrees,
// used to describe a sub-grid's domain of validity.
type BoundingBox2D struct {
	Min Point2D
	Max Point2D
}

// Contains reports whether p lies within the box, inclusive of the
// boundary, matching the "domain of validity" semantics used to decide the
// innermost containing sub-grid.
func (b BoundingBox2D) Contains(p Point2D) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Area returns the box's area in squared units of its coordinates.
func (b BoundingBox2D) Area() float64 {
	return (b.Max.X - b.Min.X) * (b.Max.Y - b.Min.Y)
}

// Equal reports whether two boxes describe the same domain, used to detect
// duplicate sub-grid domains.
func (b BoundingBox2D) Equal(other BoundingBox2D) bool {
	return b.Min == other.Min && b.Max == other.Max
}
