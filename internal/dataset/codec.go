package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/sensorgrid/datasync/internal/metrics"
)

// ValidationError pinpoints a malformed sample or row during codec
// conversion.
type ValidationError struct {
	Sample string // sample name, when known
	Row    int    // row index for decode errors, -1 otherwise
	Field  string
	Msg    string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Row >= 0 && e.Sample != "":
		return fmt.Sprintf("row %d (sample %q) %s: %s", e.Row, e.Sample, e.Field, e.Msg)
	case e.Row >= 0:
		return fmt.Sprintf("row %d %s: %s", e.Row, e.Field, e.Msg)
	default:
		return fmt.Sprintf("sample %q %s: %s", e.Sample, e.Field, e.Msg)
	}
}

// Codec converts between nested samples and flat annotation rows. The
// zero value uses no sequence detection and collects all validation
// errors before returning.
type Codec struct {
	// DetectSequences splits trailing _<digits> stems into sequence
	// name plus frame. Applied symmetrically in both directions.
	DetectSequences bool
	// FailFast stops at the first validation error instead of
	// collecting them all.
	FailFast bool
}

// errorCollector accumulates validation errors, honoring fail-fast.
type errorCollector struct {
	errs     []error
	failFast bool
}

// add records an error; reports true when conversion should stop.
func (c *errorCollector) add(err error) bool {
	c.errs = append(c.errs, err)
	return c.failFast
}

func (c *errorCollector) join() error {
	return errors.Join(c.errs...)
}

// ToRows flattens samples into annotation rows. Every annotation yields
// one row; a sample without annotations yields one row with null
// annotation columns so the sample is preserved. Validation errors are
// collected and returned together with the rows that did convert.
func (c Codec) ToRows(samples []Sample) ([]Row, error) {
	var rows []Row
	ec := &errorCollector{failFast: c.FailFast}

	for _, sample := range samples {
		name, frame := sample.Name, sample.Frame
		if frame == nil {
			name, frame = SplitName(sample.Name, c.DetectSequences)
		} else if sample.SequenceName != nil {
			name = *sample.SequenceName
		} else {
			name = CleanStem(sample.Name)
		}

		base := Row{
			Name:        name,
			Frame:       frame,
			Size:        sizeColumn(sample),
			Location:    locationColumn(sample),
			Pose:        poseColumn(sample),
			Degradation: sample.Degradation,
		}

		if len(sample.Annotations) == 0 {
			row := base
			row.Group = sample.Group
			rows = append(rows, row)
			continue
		}

		for i, ann := range sample.Annotations {
			row := base
			row.ObjectID = ann.ObjectID
			row.Label = ann.Label
			row.LabelIndex = ann.LabelIndex
			row.Group = coalesce(ann.Group, sample.Group)

			if ann.Box2D != nil {
				if err := validateBox2D(name, i, *ann.Box2D); err != nil {
					if ec.add(err) {
						return rows, ec.join()
					}
					continue
				}
				b := *ann.Box2D
				row.Box2D = []float32{b.CenterX(), b.CenterY(), b.Width, b.Height}
			}
			if ann.Box3D != nil {
				b := *ann.Box3D
				row.Box3D = []float32{b.X, b.Y, b.Z, b.Width, b.Height, b.Length}
			}
			if ann.Mask != nil {
				flat, err := flattenMask(name, i, *ann.Mask)
				if err != nil {
					if ec.add(err) {
						return rows, ec.join()
					}
					continue
				}
				row.Mask = flat
			}

			rows = append(rows, row)
			if m := metrics.Get(); m != nil {
				m.AnnotationsEncoded.Inc()
			}
		}
	}

	return rows, ec.join()
}

// FromRows rebuilds nested samples from annotation rows. Rows group by
// (name, frame) in first-appearance order; sample-level columns must
// agree across all rows of one sample.
func (c Codec) FromRows(rows []Row) ([]Sample, error) {
	type key struct {
		name     string
		frame    int64
		hasFrame bool
	}

	ec := &errorCollector{failFast: c.FailFast}
	var order []key
	byKey := make(map[key]*Sample)
	firstRow := make(map[key]Row)

	for i, row := range rows {
		k := key{name: row.Name}
		if row.Frame != nil {
			k.frame, k.hasFrame = *row.Frame, true
		}

		sample, ok := byKey[k]
		if !ok {
			sample = &Sample{
				Name:        JoinName(row.Name, row.Frame),
				Frame:       row.Frame,
				Degradation: row.Degradation,
			}
			if row.Frame != nil {
				seq := row.Name
				sample.SequenceName = &seq
			}
			if len(row.Size) == 2 {
				w, h := row.Size[0], row.Size[1]
				sample.Width, sample.Height = &w, &h
			} else if row.Size != nil {
				if ec.add(&ValidationError{Sample: row.Name, Row: i, Field: "size",
					Msg: fmt.Sprintf("expected 2 values, got %d", len(row.Size))}) {
					return samplesInOrder(order, byKey), ec.join()
				}
			}
			if len(row.Location) == 2 {
				sample.Location = &GeoPoint{Latitude: row.Location[0], Longitude: row.Location[1]}
			}
			if len(row.Pose) == 3 {
				sample.Pose = &PoseAngles{Roll: row.Pose[0], Pitch: row.Pose[1], Yaw: row.Pose[2]}
			}
			byKey[k] = sample
			firstRow[k] = row
			order = append(order, k)
		} else if err := sampleColumnsMatch(firstRow[k], row, i); err != nil {
			if ec.add(err) {
				return samplesInOrder(order, byKey), ec.join()
			}
			continue
		}

		if !row.hasAnnotation() {
			// Zero-annotation placeholder: carries the sample group.
			if sample.Group == nil {
				sample.Group = row.Group
			}
			continue
		}

		ann := Annotation{
			ObjectID:   row.ObjectID,
			Label:      row.Label,
			LabelIndex: row.LabelIndex,
			Group:      row.Group,
		}
		if row.Box2D != nil {
			if len(row.Box2D) != 4 {
				if ec.add(&ValidationError{Sample: row.Name, Row: i, Field: "box2d",
					Msg: fmt.Sprintf("expected 4 values, got %d", len(row.Box2D))}) {
					return samplesInOrder(order, byKey), ec.join()
				}
				continue
			}
			box := Box2DFromCenter(row.Box2D[0], row.Box2D[1], row.Box2D[2], row.Box2D[3])
			if err := validateRowBox2D(row.Name, i, box); err != nil {
				if ec.add(err) {
					return samplesInOrder(order, byKey), ec.join()
				}
				continue
			}
			ann.Box2D = &box
		}
		if row.Box3D != nil {
			if len(row.Box3D) != 6 {
				if ec.add(&ValidationError{Sample: row.Name, Row: i, Field: "box3d",
					Msg: fmt.Sprintf("expected 6 values, got %d", len(row.Box3D))}) {
					return samplesInOrder(order, byKey), ec.join()
				}
				continue
			}
			ann.Box3D = &Box3D{
				X: row.Box3D[0], Y: row.Box3D[1], Z: row.Box3D[2],
				Width: row.Box3D[3], Height: row.Box3D[4], Length: row.Box3D[5],
			}
		}
		if row.Mask != nil {
			mask, err := unflattenMask(row.Name, i, row.Mask)
			if err != nil {
				if ec.add(err) {
					return samplesInOrder(order, byKey), ec.join()
				}
				continue
			}
			ann.Mask = mask
		}

		sample.Annotations = append(sample.Annotations, ann)
		if m := metrics.Get(); m != nil {
			m.AnnotationsDecoded.Inc()
		}
	}

	return samplesInOrder(order, byKey), ec.join()
}

func samplesInOrder[K comparable](order []K, byKey map[K]*Sample) []Sample {
	out := make([]Sample, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

// sampleColumnsMatch checks that sample-level columns agree with the
// sample's first row. Disagreement means the table groups rows
// inconsistently.
func sampleColumnsMatch(first, row Row, idx int) error {
	mismatch := func(field string) error {
		return &ValidationError{Sample: row.Name, Row: idx, Field: field,
			Msg: "inconsistent sample metadata across rows"}
	}
	if !float64SlicesEqual(first.Location, row.Location) {
		return mismatch("location")
	}
	if !float64SlicesEqual(first.Pose, row.Pose) {
		return mismatch("pose")
	}
	if !int32SlicesEqual(first.Size, row.Size) {
		return mismatch("size")
	}
	if !stringPtrEqual(first.Degradation, row.Degradation) {
		return mismatch("degradation")
	}
	return nil
}

func sizeColumn(s Sample) []int32 {
	if s.Width == nil || s.Height == nil {
		return nil
	}
	return []int32{*s.Width, *s.Height}
}

func locationColumn(s Sample) []float64 {
	if s.Location == nil {
		return nil
	}
	return []float64{s.Location.Latitude, s.Location.Longitude}
}

func poseColumn(s Sample) []float64 {
	if s.Pose == nil {
		return nil
	}
	return []float64{s.Pose.Roll, s.Pose.Pitch, s.Pose.Yaw}
}

// validateBox2D checks normalized bounds on a top-left anchored box.
func validateBox2D(sample string, ann int, b Box2D) error {
	bad := func(msg string) error {
		return &ValidationError{Sample: sample, Row: -1,
			Field: fmt.Sprintf("annotation[%d].box2d", ann), Msg: msg}
	}
	if b.Width < 0 || b.Height < 0 {
		return bad("negative extent")
	}
	if b.Left < 0 || b.Top < 0 || b.Left+b.Width > 1 || b.Top+b.Height > 1 {
		return bad("coordinates outside normalized [0, 1] range")
	}
	return nil
}

// normSlack absorbs float32 round-off when checking boxes rebuilt from
// the center-anchored column form against the [0, 1] bounds.
const normSlack = 1e-6

// validateRowBox2D checks the box rebuilt from a columnar row against
// normalized bounds, mirroring the encode-side check.
func validateRowBox2D(sample string, idx int, b Box2D) error {
	bad := func(msg string) error {
		return &ValidationError{Sample: sample, Row: idx, Field: "box2d", Msg: msg}
	}
	if b.Width < 0 || b.Height < 0 {
		return bad("negative extent")
	}
	if b.Left < -normSlack || b.Top < -normSlack ||
		b.Left+b.Width > 1+normSlack || b.Top+b.Height > 1+normSlack {
		return bad("coordinates outside normalized [0, 1] range")
	}
	return nil
}

// flattenMask encodes polygons as x0,y0,x1,y1,... with one NaN between
// consecutive polygons and no trailing NaN. Vertices must be finite and
// normalized since NaN is the separator.
func flattenMask(sample string, ann int, m Mask) ([]float32, error) {
	bad := func(msg string) error {
		return &ValidationError{Sample: sample, Row: -1,
			Field: fmt.Sprintf("annotation[%d].mask", ann), Msg: msg}
	}
	flat := make([]float32, 0, maskFlatLen(m))
	for pi, poly := range m.Polygons {
		if pi > 0 {
			flat = append(flat, float32(math.NaN()))
		}
		for _, pt := range poly {
			if isNaN32(pt.X) || isNaN32(pt.Y) {
				return nil, bad("NaN vertex inside polygon")
			}
			if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
				return nil, bad("vertex outside normalized [0, 1] range")
			}
			flat = append(flat, pt.X, pt.Y)
		}
	}
	return flat, nil
}

// unflattenMask is the inverse of flattenMask. An empty list is a mask
// with zero polygons, distinct from a null mask column.
func unflattenMask(sample string, idx int, flat []float32) (*Mask, error) {
	mask := &Mask{Polygons: [][]Point{}}
	var poly []Point
	var coords []float32

	flush := func() error {
		if len(coords)%2 != 0 {
			return &ValidationError{Sample: sample, Row: idx, Field: "mask",
				Msg: fmt.Sprintf("polygon segment has odd coordinate count %d", len(coords))}
		}
		poly = make([]Point, 0, len(coords)/2)
		for i := 0; i < len(coords); i += 2 {
			x, y := coords[i], coords[i+1]
			if x < 0 || x > 1 || y < 0 || y > 1 {
				return &ValidationError{Sample: sample, Row: idx, Field: "mask",
					Msg: "vertex outside normalized [0, 1] range"}
			}
			poly = append(poly, Point{X: x, Y: y})
		}
		mask.Polygons = append(mask.Polygons, poly)
		coords = coords[:0]
		return nil
	}

	if len(flat) == 0 {
		return mask, nil
	}
	for _, v := range flat {
		if isNaN32(v) {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		coords = append(coords, v)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return mask, nil
}

func maskFlatLen(m Mask) int {
	n := 0
	for _, poly := range m.Polygons {
		n += 2 * len(poly)
	}
	if len(m.Polygons) > 1 {
		n += len(m.Polygons) - 1
	}
	return n
}

func isNaN32(f float32) bool {
	return f != f
}

func float64SlicesEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func int32SlicesEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
