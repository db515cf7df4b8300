package miner

import "fmt"

var rateUnits = []string{"H/s", "kH/s", "MH/s", "GH/s", "TH/s"}

// formatRate renders a hash rate with two decimals in the largest unit that
// keeps the value at or above one.
func formatRate(hashesPerSec float64) string {
	unit := 0
	for hashesPerSec >= 1000 && unit < len(rateUnits)-1 {
		hashesPerSec /= 1000
		unit++
	}
	return fmt.Sprintf("%.2f %s", hashesPerSec, rateUnits[unit])
}
