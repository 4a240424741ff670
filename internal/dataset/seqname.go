package dataset

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// sensorSuffixes are the per-sensor stem suffixes stripped before
// sequence resolution, e.g. "seq_001.camera.jpeg" has stem
// "seq_001.camera" and clean stem "seq_001".
var sensorSuffixes = []string{".camera", ".lidar", ".radar", ".depth"}

// CleanStem strips the file extension and a trailing sensor suffix.
func CleanStem(fileName string) string {
	stem := strings.TrimSuffix(fileName, path.Ext(fileName))
	for _, suffix := range sensorSuffixes {
		if strings.HasSuffix(stem, suffix) {
			return strings.TrimSuffix(stem, suffix)
		}
	}
	return stem
}

// SplitName resolves a file name into a sample name and optional frame
// number. With detection off the clean stem is the name and there is no
// frame. With detection on, a trailing run of digits after the LAST
// underscore becomes the frame and the prefix becomes the sequence
// name; a stem that does not match keeps its full name. Detection is an
// explicit caller choice, never inferred from the data.
func SplitName(fileName string, detectSequences bool) (string, *int64) {
	stem := CleanStem(fileName)
	if !detectSequences {
		return stem, nil
	}
	idx := strings.LastIndex(stem, "_")
	if idx < 0 || idx == len(stem)-1 {
		return stem, nil
	}
	frame, err := strconv.ParseInt(stem[idx+1:], 10, 64)
	if err != nil {
		return stem, nil
	}
	return stem[:idx], &frame
}

// JoinName is the inverse of SplitName for the same detection setting:
// frames are reattached zero-padded to three digits, wider frames print
// in full.
func JoinName(name string, frame *int64) string {
	if frame == nil {
		return name
	}
	return fmt.Sprintf("%s_%03d", name, *frame)
}

// ImageFileName builds the canonical camera file name for a sample.
// Sequence members live under a directory named after the sequence.
func ImageFileName(name string, frame *int64, sensor string) string {
	stem := JoinName(name, frame)
	if frame != nil {
		return path.Join(name, fmt.Sprintf("%s.%s.jpeg", stem, sensor))
	}
	return fmt.Sprintf("%s.%s.jpeg", stem, sensor)
}
