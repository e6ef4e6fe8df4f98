package kernel

import "fmt"

// TypeID classifies a geometry. Values match the GEOS type ids.
type TypeID uint8

const (
	Point TypeID = iota
	LineString
	LinearRing
	Polygon
	MultiPoint
	MultiLineString
	MultiPolygon
	GeometryCollection
)

var typeNames = [...]string{
	Point:              "Point",
	LineString:         "LineString",
	LinearRing:         "LinearRing",
	Polygon:            "Polygon",
	MultiPoint:         "MultiPoint",
	MultiLineString:    "MultiLineString",
	MultiPolygon:       "MultiPolygon",
	GeometryCollection: "GeometryCollection",
}

func (t TypeID) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TypeID(%d)", uint8(t))
}

// ValidTypeID reports whether a raw TypeID result is in range.
func ValidTypeID(v int) bool {
	return v >= 0 && v <= 255
}

// ValidHasZ reports whether a raw HasZ result is a boolean.
func ValidHasZ(v int) bool {
	return v == 0 || v == 1
}

// Entry point names shared by every kernel.
const (
	SymIntersection  = "GEOSIntersection_r"
	SymDifference    = "GEOSDifference_r"
	SymSymDifference = "GEOSSymDifference_r"
	SymUnion         = "GEOSUnion_r"
	SymSharedPaths   = "GEOSSharedPaths_r"

	SymDisjoint   = "GEOSDisjoint_r"
	SymTouches    = "GEOSTouches_r"
	SymIntersects = "GEOSIntersects_r"
	SymCrosses    = "GEOSCrosses_r"
	SymWithin     = "GEOSWithin_r"
	SymContains   = "GEOSContains_r"
	SymOverlaps   = "GEOSOverlaps_r"
	SymEquals     = "GEOSEquals_r"
	SymCovers     = "GEOSCovers_r"
	SymCoveredBy  = "GEOSCoveredBy_r"

	SymIsEmpty    = "GEOSisEmpty_r"
	SymHasZ       = "GEOSHasZ_r"
	SymClone      = "GEOSGeom_clone_r"
	SymEnvelope   = "GEOSEnvelope_r"
	SymConvexHull = "GEOSConvexHull_r"
	SymCentroid   = "GEOSGetCentroid_r"
)
