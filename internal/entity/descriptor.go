package entity

// Descriptor is a face embedding. Its length is fixed across the whole population.
type Descriptor []float64

// Clone returns a copy so cached values are never aliased by callers.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}

type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is what the extraction model returns for a single face.
// Transform is a column-major 4x4 matrix.
type Detection struct {
	Descriptor  Descriptor  `json:"descriptor"`
	Landmarks   []Point3    `json:"landmarks,omitempty"`
	Blendshapes []float64   `json:"blendshapes,omitempty"`
	Transform   [16]float64 `json:"transform"`
	Score       float64     `json:"score"`
}
