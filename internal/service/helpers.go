package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// wholeNumber truncates an already validated numeric string.
func wholeNumber(v string) int64 {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return d.IntPart()
}
