package util

import (
	"strconv"
	"strings"
)

// FormatNumber renders n with comma thousands separators, e.g. 1234567 as "1,234,567".
func FormatNumber(n uint64) string {
	in := strconv.FormatUint(n, 10)

	var sb strings.Builder

	sb.Grow(len(in) + (len(in)-1)/3)

	for i, c := range in {
		if i > 0 && (len(in)-i)%3 == 0 {
			sb.WriteByte(',')
		}

		sb.WriteRune(c)
	}

	return sb.String()
}
