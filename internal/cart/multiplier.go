package cart

import (
	"regexp"
	"strconv"
	"strings"
)

var multiplierPrefix = regexp.MustCompile(`^(\d+)\s*[xX]\s*`)

// Multiplier is the result of parsing a search box entry like "3x screwdriver".
type Multiplier struct {
	Quantity   int
	SearchTerm string
}

// ParseMultiplier splits a leading "<n>x" quantity prefix off raw. Without a
// prefix the quantity is 1 and raw is returned unchanged.
func ParseMultiplier(raw string) Multiplier {
	match := multiplierPrefix.FindStringSubmatch(raw)
	if match == nil {
		return Multiplier{Quantity: 1, SearchTerm: raw}
	}
	qty, err := strconv.Atoi(match[1])
	if err != nil {
		return Multiplier{Quantity: 1, SearchTerm: raw}
	}
	if qty < 1 {
		qty = 1
	}
	return Multiplier{
		Quantity:   qty,
		SearchTerm: strings.TrimSpace(raw[len(match[0]):]),
	}
}
