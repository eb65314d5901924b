package common

// MaxAlign is the coarsest alignment any column block is padded to.
const MaxAlign = 8

// TypeAlign rounds length up to a multiple of align. align must be a
// power of two.
func TypeAlign(align, length int) int {
	return (length + align - 1) &^ (align - 1)
}

// MaxAligned rounds length up to a MaxAlign boundary.
func MaxAligned(length int) int {
	return TypeAlign(MaxAlign, length)
}

// BitmapLen returns the byte length of a bitmap covering nitems bits.
func BitmapLen(nitems int) int {
	return (nitems + 7) / 8
}
