// Package pointcloud defines the in-memory LiDAR point container used by the
// urban-forest pipeline. Points carry a position, a classification code, a
// return count, and named float attributes joined in during processing.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	TotalX, TotalY, TotalZ float64
}

// PointCloud is a general purpose container of LiDAR points. Point data is
// mutated only through append-only attribute columns; positions are fixed at
// insertion.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data.
	MetaData() MetaData

	// Set places the given point in the cloud.
	Set(p r3.Vector, d Data) error

	// At returns the point in the cloud at the given position.
	// The 2nd return is whether the point exists.
	At(x, y, z float64) (Data, bool)

	// Iterate iterates over all points in insertion order and calls the
	// given function for each one. If the function returns false, iteration
	// stops.
	Iterate(fn func(p r3.Vector, d Data) bool)
}

// NewMetaData returns a new metadata struct ready to be merged into.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64, MaxX: -math.MaxFloat64,
		MinY: math.MaxFloat64, MaxY: -math.MaxFloat64,
		MinZ: math.MaxFloat64, MaxZ: -math.MaxFloat64,
	}
}

// Merge folds a new point into the metadata.
func (meta *MetaData) Merge(p r3.Vector) {
	if p.X > meta.MaxX {
		meta.MaxX = p.X
	}
	if p.Y > meta.MaxY {
		meta.MaxY = p.Y
	}
	if p.Z > meta.MaxZ {
		meta.MaxZ = p.Z
	}
	if p.X < meta.MinX {
		meta.MinX = p.X
	}
	if p.Y < meta.MinY {
		meta.MinY = p.Y
	}
	if p.Z < meta.MinZ {
		meta.MinZ = p.Z
	}
	meta.TotalX += p.X
	meta.TotalY += p.Y
	meta.TotalZ += p.Z
}

// Center returns the centroid of all points merged so far, or the zero vector
// for an empty cloud.
func (meta *MetaData) Center(size int) r3.Vector {
	if size == 0 {
		return r3.Vector{}
	}
	n := float64(size)
	return r3.Vector{X: meta.TotalX / n, Y: meta.TotalY / n, Z: meta.TotalZ / n}
}

// NewVector is a convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}
