package util

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

/*
Utility functions.
*/

////////////////////////////////////////////////////////////////////////////////

// Okeys returns the keys of a map in sorted order.
func Okeys[T cmp.Ordered, K any](m map[T]K) []T {
	keys := make([]T, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// HumanBytes returns a human-readable representation of a number of bytes.
func HumanBytes(n uint64) string {
	suffix := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	i := 0
	for n >= 1024 && i < len(suffix)-1 {
		n /= 1024
		i++
	}
	return strconv.FormatUint(n, 10) + " " + suffix[i]
}

// When returns a if cond is true, otherwise b.
func When[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// PrintTable writes rows under centered headers, formatted like:
//
//	|  Version  |  Kind   |
//	|-----------|---------|
//	| 0         | entry   |
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header) + 4
	}
	for _, row := range rows {
		for i, col := range row {
			widths[i] = max(widths[i], len(col)+2)
		}
	}
	for i, header := range headers {
		if (widths[i]-len(header))%2 == 1 {
			widths[i]++
		}
	}
	fmt.Fprint(w, "|")
	for i, header := range headers {
		pad := strings.Repeat(" ", (widths[i]-len(header))/2)
		fmt.Fprintf(w, "%s%s%s|", pad, header, pad)
	}
	fmt.Fprint(w, "\n|")
	for _, width := range widths {
		fmt.Fprintf(w, "%s|", strings.Repeat("-", width))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		fmt.Fprint(w, "|")
		for i, col := range row {
			fmt.Fprintf(w, " %-*s|", widths[i]-1, col)
		}
		fmt.Fprintln(w)
	}
}
