package pointcloud

// Data describes the payload associated with a single point within a
// PointCloud: the LiDAR classification code, the pulse return count, and the
// named float attributes joined in by pipeline stages.
type Data interface {
	// Classification returns the point's ASPRS classification code.
	Classification() int

	// SetClassification sets the classification code on the point.
	SetClassification(code int) Data

	// NumberOfReturns returns how many returns the emitting pulse produced.
	NumberOfReturns() int

	// Attribute returns the named float attribute, if present.
	Attribute(name string) (float64, bool)

	// SetAttribute adds or replaces a named float attribute.
	SetAttribute(name string, v float64) Data
}

type basicData struct {
	classification  int
	numberOfReturns int
	attributes      map[string]float64
}

// NewBasicData returns point data with the given classification and return count.
func NewBasicData(classification, numberOfReturns int) Data {
	return &basicData{
		classification:  classification,
		numberOfReturns: numberOfReturns,
	}
}

func (bp *basicData) Classification() int {
	return bp.classification
}

func (bp *basicData) SetClassification(code int) Data {
	bp.classification = code
	return bp
}

func (bp *basicData) NumberOfReturns() int {
	return bp.numberOfReturns
}

func (bp *basicData) Attribute(name string) (float64, bool) {
	v, ok := bp.attributes[name]
	return v, ok
}

func (bp *basicData) SetAttribute(name string, v float64) Data {
	if bp.attributes == nil {
		bp.attributes = make(map[string]float64, 2)
	}
	bp.attributes[name] = v
	return bp
}
