package affinity

import "math/bits"

// maxCore is the highest logical core index representable in a 64-bit mask.
const maxCore = 63

// CoreIDsToMask folds logical core indices into an affinity bitmask.
// Indices outside [0, 63] are silently dropped so defensive callers with
// probed-but-invalid topology data do not fail the whole call. Duplicate
// indices are idempotent; no input yields mask 0.
func CoreIDsToMask(ids ...int) uint64 {
	var mask uint64
	for _, id := range ids {
		if id < 0 || id > maxCore {
			continue
		}
		mask |= 1 << uint(id)
	}
	return mask
}

// MaskToCoreIDs expands an affinity bitmask into the ascending list of set
// core indices. Mask 0 yields an empty (non-nil) list.
func MaskToCoreIDs(mask uint64) []int {
	ids := make([]int, 0, bits.OnesCount64(mask))
	for mask != 0 {
		id := bits.TrailingZeros64(mask)
		ids = append(ids, id)
		mask &^= 1 << uint(id)
	}
	return ids
}
