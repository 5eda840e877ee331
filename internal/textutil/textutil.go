// Package textutil measures user text the way the clients display it.
package textutil

import "github.com/rivo/uniseg"

// Graphemes counts user-perceived characters
func Graphemes(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// TitleUnits counts code points above U+00FF as two units and the rest as one
func TitleUnits(s string) int {
	units := 0
	for _, r := range s {
		if r > 0xFF {
			units += 2
		} else {
			units++
		}
	}
	return units
}
