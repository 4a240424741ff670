package transfer

import "fmt"

// DefaultPartSize is the part size used when the caller does not override
// it. Matches the platform's multipart minimum alignment.
const DefaultPartSize = 100 << 20 // 100 MiB

// Part describes one contiguous byte range of a file.
type Part struct {
	Index  int   // zero-based plan position; wire part numbers are Index+1
	Offset int64 // byte offset into the file
	Length int64 // byte length; only the last part may differ from partSize
}

// PlanParts splits a file of totalSize bytes into contiguous,
// non-overlapping parts of partSize bytes. The last part carries the
// remainder. An empty file still produces exactly one zero-length part
// so the multipart protocol has something to complete.
func PlanParts(totalSize, partSize int64) ([]Part, error) {
	if totalSize < 0 {
		return nil, fmt.Errorf("negative file size %d", totalSize)
	}
	if partSize <= 0 {
		return nil, fmt.Errorf("part size must be positive, got %d", partSize)
	}

	n := totalSize / partSize
	if totalSize%partSize != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}

	parts := make([]Part, 0, n)
	for i := int64(0); i < n; i++ {
		length := partSize
		if i == n-1 {
			length = totalSize - i*partSize
		}
		parts = append(parts, Part{
			Index:  int(i),
			Offset: i * partSize,
			Length: length,
		})
	}
	return parts, nil
}
