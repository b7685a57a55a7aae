// Package landmark provides hand landmark types and the feature normalization
// used as classifier input.
package landmark

import (
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Dims is the number of coordinates per landmark.
const Dims = 3

// FeatureDim is the length of a flattened feature vector.
const FeatureDim = NumLandmarks * Dims

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Add returns p + q.
func (p Point3D) Add(q Point3D) Point3D {
	return Point3D{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Scale returns p multiplied by f.
func (p Point3D) Scale(f float64) Point3D {
	return Point3D{X: p.X * f, Y: p.Y * f, Z: p.Z * f}
}

// Norm returns the Euclidean length of p.
func (p Point3D) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Landmarks holds the 21 ordered hand landmarks of a single detection.
// Point 0 is the wrist and serves as the reference landmark.
type Landmarks [NumLandmarks]Point3D

// FeatureVector is the normalized, flattened representation of a hand pose.
type FeatureVector [FeatureDim]float64

// Point returns the i-th landmark of the feature vector as a Point3D.
func (f *FeatureVector) Point(i int) Point3D {
	return Point3D{X: f[i*Dims], Y: f[i*Dims+1], Z: f[i*Dims+2]}
}

// MaxNorm returns the largest per-landmark Euclidean norm.
func (f *FeatureVector) MaxNorm() float64 {
	var m float64
	for i := 0; i < NumLandmarks; i++ {
		if n := f.Point(i).Norm(); n > m {
			m = n
		}
	}
	return m
}

// Normalize translates the landmarks so the wrist sits at the origin and
// scales them so the farthest landmark is at distance 1. When every point
// coincides with the wrist the result is the zero vector.
func Normalize(l Landmarks) FeatureVector {
	wrist := l[Wrist]

	var centered [NumLandmarks]Point3D
	var maxDist float64
	for i, p := range l {
		centered[i] = p.Sub(wrist)
		if d := centered[i].Norm(); d > maxDist {
			maxDist = d
		}
	}

	if maxDist > 0 {
		inv := 1 / maxDist
		for i := range centered {
			centered[i] = centered[i].Scale(inv)
		}
	}

	var out FeatureVector
	for i, p := range centered {
		out[i*Dims] = p.X
		out[i*Dims+1] = p.Y
		out[i*Dims+2] = p.Z
	}
	return out
}

// Translate returns a copy of l with every point shifted by offset.
func (l Landmarks) Translate(offset Point3D) Landmarks {
	var out Landmarks
	for i, p := range l {
		out[i] = p.Add(offset)
	}
	return out
}

// FromSlices converts a 21x3 numeric matrix into Landmarks.
func FromSlices(points [][]float64) (Landmarks, error) {
	var l Landmarks
	if len(points) != NumLandmarks {
		return l, fmt.Errorf("expected %d landmarks, got %d", NumLandmarks, len(points))
	}
	for i, p := range points {
		if len(p) != Dims {
			return l, fmt.Errorf("landmark %d: expected %d coordinates, got %d", i, Dims, len(p))
		}
		l[i] = Point3D{X: p[0], Y: p[1], Z: p[2]}
	}
	return l, nil
}

// Slices returns the landmarks as a 21x3 matrix.
func (l Landmarks) Slices() [][]float64 {
	out := make([][]float64, NumLandmarks)
	for i, p := range l {
		out[i] = []float64{p.X, p.Y, p.Z}
	}
	return out
}
