package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRowsBox2DCenterTransform(t *testing.T) {
	sample := Sample{
		Name: "frame.jpeg",
		Annotations: []Annotation{{
			Label: ptr("car"),
			Box2D: &Box2D{Left: 0.1, Top: 0.2, Width: 0.4, Height: 0.2},
		}},
	}

	rows, err := Codec{}.ToRows([]Sample{sample})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Columnar boxes anchor at the center.
	assert.InDelta(t, 0.3, rows[0].Box2D[0], 1e-6, "center x")
	assert.InDelta(t, 0.3, rows[0].Box2D[1], 1e-6, "center y")
	assert.InDelta(t, 0.4, rows[0].Box2D[2], 1e-6, "width")
	assert.InDelta(t, 0.2, rows[0].Box2D[3], 1e-6, "height")
}

func TestBox2DCenterTransformInverse(t *testing.T) {
	orig := Box2D{Left: 0.25, Top: 0.5, Width: 0.125, Height: 0.25}
	back := Box2DFromCenter(orig.CenterX(), orig.CenterY(), orig.Width, orig.Height)
	assert.InDelta(t, orig.Left, back.Left, 1e-6)
	assert.InDelta(t, orig.Top, back.Top, 1e-6)
	assert.Equal(t, orig.Width, back.Width)
	assert.Equal(t, orig.Height, back.Height)
}

func TestToRowsZeroAnnotationSample(t *testing.T) {
	w, h := int32(1920), int32(1080)
	sample := Sample{
		Name:   "lonely.jpeg",
		Group:  ptr("train"),
		Width:  &w,
		Height: &h,
	}

	rows, err := Codec{}.ToRows([]Sample{sample})
	require.NoError(t, err)
	require.Len(t, rows, 1, "a sample without annotations still yields one row")

	row := rows[0]
	assert.Equal(t, "lonely", row.Name)
	assert.Equal(t, ptr("train"), row.Group)
	assert.Equal(t, []int32{1920, 1080}, row.Size)
	assert.Nil(t, row.ObjectID)
	assert.Nil(t, row.Label)
	assert.Nil(t, row.Box2D)
	assert.Nil(t, row.Box3D)
	assert.Nil(t, row.Mask)
	assert.False(t, row.hasAnnotation())
}

func TestToRowsMaskFlattening(t *testing.T) {
	twoPolys := Mask{Polygons: [][]Point{
		{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.1}, {X: 0.2, Y: 0.2}},
		{{X: 0.5, Y: 0.5}, {X: 0.6, Y: 0.6}},
	}}

	flat, err := flattenMask("s", 0, twoPolys)
	require.NoError(t, err)
	require.Len(t, flat, 11, "3+2 vertices plus one separator")

	// Single NaN separates the polygons; no trailing NaN.
	assert.True(t, isNaN32(flat[6]))
	for i, v := range flat {
		if i != 6 {
			assert.False(t, isNaN32(v), "unexpected NaN at %d", i)
		}
	}

	onePoly := Mask{Polygons: [][]Point{{{X: 0.1, Y: 0.2}}}}
	flat, err = flattenMask("s", 0, onePoly)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, flat)

	// Zero polygons flatten to a present-but-empty list, not null.
	flat, err = flattenMask("s", 0, Mask{Polygons: [][]Point{}})
	require.NoError(t, err)
	assert.NotNil(t, flat)
	assert.Empty(t, flat)
}

func TestUnflattenMaskRoundTrip(t *testing.T) {
	masks := []Mask{
		{Polygons: [][]Point{}},
		{Polygons: [][]Point{{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}}}},
		{Polygons: [][]Point{
			{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.1}, {X: 0.2, Y: 0.2}},
			{{X: 0.5, Y: 0.5}, {X: 0.6, Y: 0.6}},
			{{X: 0.9, Y: 0.9}, {X: 1.0, Y: 1.0}},
		}},
	}
	for _, m := range masks {
		flat, err := flattenMask("s", 0, m)
		require.NoError(t, err)
		back, err := unflattenMask("s", 0, flat)
		require.NoError(t, err)
		assert.Equal(t, m, *back)
	}
}

func TestUnflattenMaskOddCoordinateCount(t *testing.T) {
	_, err := unflattenMask("s", 0, []float32{0.1, 0.2, 0.3})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mask", verr.Field)
}

func TestFlattenMaskRejectsBadVertices(t *testing.T) {
	nan := float32(math.NaN())
	_, err := flattenMask("s", 0, Mask{Polygons: [][]Point{{{X: nan, Y: 0.1}}}})
	assert.Error(t, err, "NaN vertex would corrupt the separator encoding")

	_, err = flattenMask("s", 0, Mask{Polygons: [][]Point{{{X: 1.5, Y: 0.1}}}})
	assert.Error(t, err, "vertex outside normalized range")
}

func TestToRowsValidationCollected(t *testing.T) {
	samples := []Sample{{
		Name: "bad.jpeg",
		Annotations: []Annotation{
			{Box2D: &Box2D{Left: -0.1, Top: 0, Width: 0.5, Height: 0.5}},
			{Box2D: &Box2D{Left: 0.8, Top: 0.8, Width: 0.5, Height: 0.5}},
			{Label: ptr("ok"), Box2D: &Box2D{Left: 0.1, Top: 0.1, Width: 0.2, Height: 0.2}},
		},
	}}

	rows, err := Codec{}.ToRows(samples)
	require.Error(t, err)
	assert.Len(t, rows, 1, "valid annotations still convert")
	assert.Equal(t, ptr("ok"), rows[0].Label)

	// Fail-fast stops at the first bad annotation.
	rows, err = Codec{FailFast: true}.ToRows(samples)
	require.Error(t, err)
	assert.Empty(t, rows)
}

func TestToRowsSequenceDetection(t *testing.T) {
	samples := []Sample{
		{Name: "drive_001.camera.jpeg"},
		{Name: "drive_002.camera.jpeg"},
		{Name: "standalone.jpeg"},
	}

	rows, err := Codec{DetectSequences: true}.ToRows(samples)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "drive", rows[0].Name)
	require.NotNil(t, rows[0].Frame)
	assert.Equal(t, int64(1), *rows[0].Frame)
	assert.Equal(t, "drive", rows[1].Name)
	assert.Equal(t, "standalone", rows[2].Name)
	assert.Nil(t, rows[2].Frame)
}

func TestToRowsExplicitFrameWins(t *testing.T) {
	frame := int64(9)
	seq := "myseq"
	rows, err := Codec{}.ToRows([]Sample{{
		Name:         "whatever_003.jpeg",
		SequenceName: &seq,
		Frame:        &frame,
	}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "myseq", rows[0].Name)
	assert.Equal(t, int64(9), *rows[0].Frame)
}

func TestFromRowsGroupsByNameAndFrame(t *testing.T) {
	f1, f2 := int64(1), int64(2)
	rows := []Row{
		{Name: "drive", Frame: &f1, Label: ptr("car"), Box2D: []float32{0.5, 0.5, 0.2, 0.2}},
		{Name: "drive", Frame: &f2, Label: ptr("bike")},
		{Name: "drive", Frame: &f1, Label: ptr("truck")},
		{Name: "solo", Label: ptr("sign")},
	}

	samples, err := Codec{}.FromRows(rows)
	require.NoError(t, err)
	require.Len(t, samples, 3, "rows group by (name, frame)")

	// First-appearance order is preserved.
	assert.Equal(t, "drive_001", samples[0].Name)
	assert.Equal(t, "drive_002", samples[1].Name)
	assert.Equal(t, "solo", samples[2].Name)

	require.NotNil(t, samples[0].SequenceName)
	assert.Equal(t, "drive", *samples[0].SequenceName)
	assert.Nil(t, samples[2].SequenceName)
	assert.Nil(t, samples[2].Frame)

	require.Len(t, samples[0].Annotations, 2)
	assert.Equal(t, ptr("car"), samples[0].Annotations[0].Label)
	assert.Equal(t, ptr("truck"), samples[0].Annotations[1].Label)

	box := samples[0].Annotations[0].Box2D
	require.NotNil(t, box)
	assert.InDelta(t, 0.4, box.Left, 1e-6)
	assert.InDelta(t, 0.4, box.Top, 1e-6)
}

func TestFromRowsPlaceholderCarriesGroup(t *testing.T) {
	samples, err := Codec{}.FromRows([]Row{
		{Name: "empty", Group: ptr("val")},
	})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, ptr("val"), samples[0].Group)
	assert.Empty(t, samples[0].Annotations)
}

func TestFromRowsArityErrors(t *testing.T) {
	_, err := Codec{}.FromRows([]Row{
		{Name: "s", Box2D: []float32{0.5, 0.5, 0.2}},
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "box2d", verr.Field)

	_, err = Codec{}.FromRows([]Row{
		{Name: "s", Box3D: []float32{1, 2, 3, 4, 5}},
	})
	require.Error(t, err)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "box3d", verr.Field)
}

func TestFromRowsRejectsOutOfRangeBox2D(t *testing.T) {
	samples, err := Codec{}.FromRows([]Row{
		{Name: "s", Box2D: []float32{5, 5, 0.2, 0.2}},
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "box2d", verr.Field)
	assert.Contains(t, verr.Msg, "[0, 1]")
	require.Len(t, samples, 1)
	assert.Empty(t, samples[0].Annotations, "rejected box is not decoded")

	// A box touching both edges is still in range after the center
	// transform round trip.
	samples, err = Codec{}.FromRows([]Row{
		{Name: "s", Box2D: []float32{0.65, 0.65, 0.7, 0.7}},
	})
	require.NoError(t, err)
	require.Len(t, samples[0].Annotations, 1)
}

func TestFromRowsRejectsOutOfRangeMaskVertex(t *testing.T) {
	_, err := Codec{}.FromRows([]Row{
		{Name: "s", Mask: []float32{2.5, 0.5}},
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mask", verr.Field)
	assert.Contains(t, verr.Msg, "[0, 1]")
}

func TestFromRowsInconsistentMetadata(t *testing.T) {
	_, err := Codec{}.FromRows([]Row{
		{Name: "s", Size: []int32{100, 100}, Label: ptr("a"), LabelIndex: ptr(int64(0))},
		{Name: "s", Size: []int32{200, 200}, Label: ptr("b"), LabelIndex: ptr(int64(1))},
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "size", verr.Field)
}

func TestCodecRoundTrip(t *testing.T) {
	w, h := int32(1280), int32(720)
	samples := []Sample{
		{
			Name:   "drive_001.camera.jpeg",
			Group:  ptr("train"),
			Width:  &w,
			Height: &h,
			Location: &GeoPoint{Latitude: 48.137, Longitude: 11.575},
			Pose:     &PoseAngles{Roll: 0.5, Pitch: -1.25, Yaw: 90},
			Annotations: []Annotation{
				{
					ObjectID: ptr("obj-1"),
					Label:    ptr("car"),
					Group:    ptr("train"),
					Box2D:    &Box2D{Left: 0.1, Top: 0.2, Width: 0.3, Height: 0.4},
					Box3D:    &Box3D{X: 1, Y: 2, Z: 3, Width: 4, Height: 5, Length: 6},
				},
				{
					Label: ptr("road"),
					Group: ptr("train"),
					Mask: &Mask{Polygons: [][]Point{
						{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
						{{X: 0.2, Y: 0.2}, {X: 0.3, Y: 0.3}},
					}},
				},
			},
		},
		{
			Name:        "standalone.jpeg",
			Degradation: ptr("rain"),
			Annotations: []Annotation{
				{Label: ptr("sign"), Group: ptr("test"), LabelIndex: ptr(int64(7))},
			},
		},
	}

	codec := Codec{DetectSequences: true}
	rows, err := codec.ToRows(samples)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	back, err := codec.FromRows(rows)
	require.NoError(t, err)
	require.Len(t, back, 2)

	first := back[0]
	assert.Equal(t, "drive_001", first.Name)
	require.NotNil(t, first.SequenceName)
	assert.Equal(t, "drive", *first.SequenceName)
	assert.Equal(t, &w, first.Width)
	assert.Equal(t, &h, first.Height)
	require.NotNil(t, first.Location)
	assert.Equal(t, 48.137, first.Location.Latitude)
	require.NotNil(t, first.Pose)
	assert.Equal(t, -1.25, first.Pose.Pitch)
	require.Len(t, first.Annotations, 2)
	box := first.Annotations[0].Box2D
	require.NotNil(t, box)
	assert.InDelta(t, 0.1, box.Left, 1e-6)
	assert.InDelta(t, 0.2, box.Top, 1e-6)
	assert.InDelta(t, 0.3, box.Width, 1e-6)
	assert.InDelta(t, 0.4, box.Height, 1e-6)
	assert.Equal(t, samples[0].Annotations[0].Box3D, first.Annotations[0].Box3D)
	assert.Equal(t, samples[0].Annotations[1].Mask, first.Annotations[1].Mask)

	second := back[1]
	assert.Equal(t, "standalone", second.Name)
	assert.Equal(t, ptr("rain"), second.Degradation)
	require.Len(t, second.Annotations, 1)
	assert.Equal(t, ptr(int64(7)), second.Annotations[0].LabelIndex)
}
