package volume

import (
	"slices"

	"github.com/maruel/natural"
)

// SortNatural sorts slice file names in place so that digit runs compare by
// numeric value: "2.dcm" before "10.dcm".
func SortNatural(names []string) {
	slices.SortStableFunc(names, natural.Compare)
}
