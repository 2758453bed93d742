package model

// SurfaceKind describes the dominant track surface.
type SurfaceKind string

const (
	SurfaceAsphalt  SurfaceKind = "asphalt"
	SurfaceConcrete SurfaceKind = "concrete"
	SurfaceGravel   SurfaceKind = "gravel"
	SurfaceMixed    SurfaceKind = "mixed"
)

// TrackConfiguration is immutable once a race has started.
type TrackConfiguration struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Length      float64     `json:"length"` // meters
	SectorCount int         `json:"sectorCount"`
	CornerCount int         `json:"cornerCount"`
	Elevation   float64     `json:"elevation"` // meters of total elevation change
	Surface     SurfaceKind `json:"surface"`
	Difficulty  float64     `json:"difficulty"`
}

func (t *TrackConfiguration) SectorLength() float64 {
	if t.SectorCount <= 0 {
		return t.Length
	}
	return t.Length / float64(t.SectorCount)
}
