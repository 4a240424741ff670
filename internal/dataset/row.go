package dataset

// Row is one record of the flat annotation table: one row per
// annotation, plus one all-null row for a sample without annotations so
// the sample itself survives the round trip. Sample-level columns
// repeat on every row of the sample.
//
// Geometry conventions differ from the nested form on purpose:
// box2d is [cx, cy, w, h] center-anchored, box3d is [x, y, z, w, h, l],
// and mask flattens polygons to x0,y0,x1,y1,... with a single NaN
// separating consecutive polygons and no trailing NaN. A null mask
// means no mask; an empty list means a mask with zero polygons.
//
// Columns after group were introduced later and may be entirely absent
// in older files; readers treat missing columns as null.
type Row struct {
	Name        string    `parquet:"name,dict"`
	Frame       *int64    `parquet:"frame,optional"`
	ObjectID    *string   `parquet:"object_id,optional"`
	Label       *string   `parquet:"label,optional,dict"`
	LabelIndex  *int64    `parquet:"label_index,optional"`
	Group       *string   `parquet:"group,optional,dict"`
	Mask        []float32 `parquet:"mask,optional,list"`
	Box2D       []float32 `parquet:"box2d,optional,list"`
	Box3D       []float32 `parquet:"box3d,optional,list"`
	Size        []int32   `parquet:"size,optional,list"`
	Location    []float64 `parquet:"location,optional,list"`
	Pose        []float64 `parquet:"pose,optional,list"`
	Degradation *string   `parquet:"degradation,optional"`
}

// hasAnnotation reports whether the row carries any annotation columns,
// distinguishing a real annotation from a zero-annotation placeholder.
func (r Row) hasAnnotation() bool {
	return r.ObjectID != nil || r.Label != nil || r.LabelIndex != nil ||
		r.Mask != nil || r.Box2D != nil || r.Box3D != nil
}
