package dataset

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadTable(t *testing.T) {
	frame := int64(3)
	rows := []Row{
		{
			Name:       "drive",
			Frame:      &frame,
			ObjectID:   ptr("obj-1"),
			Label:      ptr("car"),
			LabelIndex: ptr(int64(2)),
			Group:      ptr("train"),
			Box2D:      []float32{0.5, 0.5, 0.2, 0.2},
			Box3D:      []float32{1, 2, 3, 4, 5, 6},
			Size:       []int32{1920, 1080},
			Location:   []float64{48.137, 11.575},
			Pose:       []float64{0, -1.5, 90},
		},
		{
			Name: "drive",
			Mask: []float32{0.1, 0.1, 0.2, 0.2, float32(math.NaN()), 0.5, 0.5},
			Size: []int32{1920, 1080},
		},
		{
			Name:     "drive",
			ObjectID: ptr("obj-2"),
			Mask:     []float32{},
		},
		{Name: "placeholder", Degradation: ptr("fog")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, rows, CompressionSnappy))

	got, err := ReadTable(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "drive", got[0].Name)
	assert.Equal(t, &frame, got[0].Frame)
	assert.Equal(t, ptr("car"), got[0].Label)
	assert.Equal(t, rows[0].Box2D, got[0].Box2D)
	assert.Equal(t, rows[0].Box3D, got[0].Box3D)
	assert.Equal(t, rows[0].Size, got[0].Size)
	assert.Equal(t, rows[0].Location, got[0].Location)

	// NaN separators survive the column encoding.
	require.Len(t, got[1].Mask, 7)
	assert.True(t, isNaN32(got[1].Mask[4]))
	assert.True(t, got[1].hasAnnotation(), "mask row is an annotation row")
	assert.Nil(t, got[1].Box2D, "absent box2d reads back null")

	// A present-but-empty mask stays distinct from a null mask.
	assert.NotNil(t, got[2].Mask)
	assert.Empty(t, got[2].Mask)
	assert.Nil(t, got[3].Mask)

	assert.Nil(t, got[3].Frame)
	assert.Equal(t, ptr("fog"), got[3].Degradation)
	assert.False(t, got[3].hasAnnotation())
}

func TestWriteTableCodecs(t *testing.T) {
	rows := []Row{{Name: "a", Label: ptr("x")}}
	for _, codec := range []string{CompressionSnappy, CompressionZstd, CompressionUncompressed, ""} {
		var buf bytes.Buffer
		require.NoError(t, WriteTable(&buf, rows, codec), "codec %q", codec)
		got, err := ReadTable(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err, "codec %q", codec)
		assert.Len(t, got, 1, "codec %q", codec)
	}
}

func TestWriteTableUnknownCodec(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, nil, "lzma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lzma")
}
