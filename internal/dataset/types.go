// Package dataset holds the nested sample model, the flat columnar
// annotation table, and the codec converting between the two.
package dataset

import (
	"encoding/json"
	"fmt"
)

// Box2D is an axis-aligned 2D box anchored at its top-left corner, in
// normalized image coordinates. The columnar form is center-anchored;
// the codec converts between the two.
type Box2D struct {
	Left   float32 `json:"x"`
	Top    float32 `json:"y"`
	Width  float32 `json:"w"`
	Height float32 `json:"h"`
}

// CenterX returns the horizontal box center.
func (b Box2D) CenterX() float32 { return b.Left + b.Width/2 }

// CenterY returns the vertical box center.
func (b Box2D) CenterY() float32 { return b.Top + b.Height/2 }

// Box2DFromCenter builds a top-left anchored box from a center-anchored
// one.
func Box2DFromCenter(cx, cy, w, h float32) Box2D {
	return Box2D{Left: cx - w/2, Top: cy - h/2, Width: w, Height: h}
}

// Box3D is a 3D cuboid anchored at its center, in metric sensor
// coordinates. Stored identically in both representations.
type Box3D struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Z      float32 `json:"z"`
	Width  float32 `json:"w"`
	Height float32 `json:"h"`
	Length float32 `json:"l"`
}

// Point is one polygon vertex in normalized image coordinates,
// serialized as a two-element [x, y] array.
type Point struct {
	X float32
	Y float32
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float32{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float32
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("polygon vertex must be [x, y]: %w", err)
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// Mask is a segmentation mask as a list of polygons. An absent mask and
// a mask with zero polygons are distinct states and stay distinct
// through the codec.
type Mask struct {
	Polygons [][]Point `json:"polygons"`
}

// Annotation is one labeled object within a sample.
type Annotation struct {
	ObjectID   *string `json:"object_id,omitempty"`
	Label      *string `json:"label,omitempty"`
	LabelIndex *int64  `json:"label_index,omitempty"`
	Group      *string `json:"group,omitempty"`
	Box2D      *Box2D  `json:"box2d,omitempty"`
	Box3D      *Box3D  `json:"box3d,omitempty"`
	Mask       *Mask   `json:"mask,omitempty"`
}

// annotationAliases carries the legacy field spellings still present in
// older exports. Reads accept both; writes emit canonical names only.
type annotationAliases struct {
	ObjectID       *string `json:"object_id"`
	LegacyObjectID *string `json:"objectId"`
	Label          *string `json:"label"`
	LabelName      *string `json:"label_name"`
	LabelIndex     *int64  `json:"label_index"`
	Group          *string `json:"group"`
	GroupName      *string `json:"group_name"`
	Box2D          *Box2D  `json:"box2d"`
	Box3D          *Box3D  `json:"box3d"`
	Mask           *Mask   `json:"mask"`
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var aux annotationAliases
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.ObjectID = coalesce(aux.ObjectID, aux.LegacyObjectID)
	a.Label = coalesce(aux.Label, aux.LabelName)
	a.LabelIndex = aux.LabelIndex
	a.Group = coalesce(aux.Group, aux.GroupName)
	a.Box2D = aux.Box2D
	a.Box3D = aux.Box3D
	a.Mask = aux.Mask
	return nil
}

func coalesce[T any](primary, fallback *T) *T {
	if primary != nil {
		return primary
	}
	return fallback
}

// GeoPoint is a WGS84 capture location.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PoseAngles is the sensor orientation at capture time, in degrees.
type PoseAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// File is one sensor artifact attached to a sample.
type File struct {
	Type string `json:"type"` // "camera" | "lidar" | "radar" | ...
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Sample is one capture instant with its sensor files and annotations.
type Sample struct {
	ID           string       `json:"id,omitempty"`
	UUID         string       `json:"uuid,omitempty"`
	Name         string       `json:"image_name"`
	SequenceName *string      `json:"sequence_name,omitempty"`
	Frame        *int64       `json:"frame,omitempty"`
	Group        *string      `json:"group,omitempty"`
	Width        *int32       `json:"width,omitempty"`
	Height       *int32       `json:"height,omitempty"`
	Location     *GeoPoint    `json:"location,omitempty"`
	Pose         *PoseAngles  `json:"pose,omitempty"`
	Degradation  *string      `json:"degradation,omitempty"`
	Files        []File       `json:"files,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
}

// sampleAliases mirrors annotationAliases for the sample-level legacy
// group spelling.
type sampleAliases struct {
	ID           string       `json:"id"`
	UUID         string       `json:"uuid"`
	Name         string       `json:"image_name"`
	SequenceName *string      `json:"sequence_name"`
	Frame        *int64       `json:"frame"`
	Group        *string      `json:"group"`
	GroupName    *string      `json:"group_name"`
	Width        *int32       `json:"width"`
	Height       *int32       `json:"height"`
	Location     *GeoPoint    `json:"location"`
	Pose         *PoseAngles  `json:"pose"`
	Degradation  *string      `json:"degradation"`
	Files        []File       `json:"files"`
	Annotations  []Annotation `json:"annotations"`
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var aux sampleAliases
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Sample{
		ID:           aux.ID,
		UUID:         aux.UUID,
		Name:         aux.Name,
		SequenceName: aux.SequenceName,
		Frame:        aux.Frame,
		Group:        coalesce(aux.Group, aux.GroupName),
		Width:        aux.Width,
		Height:       aux.Height,
		Location:     aux.Location,
		Pose:         aux.Pose,
		Degradation:  aux.Degradation,
		Files:        aux.Files,
		Annotations:  aux.Annotations,
	}
	return nil
}
