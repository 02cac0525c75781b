package archives

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Stored hashes are truncated for storage economy; 16 hex chars is plenty to
// tell "same file set" from "changed file set".
const filesHashLength = 16

// HashFileDescriptors computes the content fingerprint for a file set. Input
// order never matters: descriptors are sorted by filename before being
// folded in. Any change to the set membership, or to any member's etag, size
// or modification time, produces a different hash.
func HashFileDescriptors(descriptors []FileDescriptor) string {
	sorted := make([]FileDescriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.SliceStable(sorted, func(i int, j int) bool {
		return sorted[i].Filename() < sorted[j].Filename()
	})

	hasher := sha256.New()
	for _, d := range sorted {
		fmt.Fprintf(hasher, "%s|%s|%d|%d\n", d.Filename(), d.Etag, d.Size, d.LastModified)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:filesHashLength]
}
