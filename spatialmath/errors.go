// Package spatialmath implements the convex-hull geometry used to measure
// tree crowns: 2D hulls with rotating-calipers extents and 3D hulls with
// volume and surface area.
package spatialmath

import (
	"errors"
	"fmt"
)

// GeometryError reports degenerate hull input. It is scoped to one segment;
// callers drop the offending segment and continue.
type GeometryError struct {
	msg string
}

func newGeometryError(format string, args ...interface{}) *GeometryError {
	return &GeometryError{msg: fmt.Sprintf(format, args...)}
}

func (e *GeometryError) Error() string {
	return e.msg
}

// NewDegenerateCrownError reports a crown point subset too small or too flat
// to carry a 3D hull.
func NewDegenerateCrownError(segmentID, numPoints int) *GeometryError {
	return newGeometryError("crown segment %d is degenerate (%d usable points)", segmentID, numPoints)
}

// IsGeometryError reports whether err is (or wraps) a GeometryError.
func IsGeometryError(err error) bool {
	var ge *GeometryError
	return errors.As(err, &ge)
}
