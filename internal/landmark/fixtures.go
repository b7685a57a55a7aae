package landmark

// ThumbsUp returns a preset pose with the thumb extended upward while the
// other fingers are curled (close to the ASL letter "A").
func ThumbsUp() Landmarks {
	var l Landmarks

	l[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (Y decreases going up)
	l[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	l[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	l[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	l[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	l[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	l[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	l[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	l[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	l[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	l[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	l[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	l[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	l[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	l[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	l[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	l[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	l[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	l[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	l[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	l[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return l
}

// OpenPalm returns a preset pose with all fingers extended (close to the
// ASL letter "B" with the thumb out).
func OpenPalm() Landmarks {
	var l Landmarks

	l[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	l[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	l[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	l[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	l[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	l[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	l[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	l[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	l[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	l[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	l[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	l[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	l[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	l[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	l[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	l[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	l[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	l[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	l[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	l[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	l[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return l
}
