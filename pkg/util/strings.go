package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIntDefault parses s or returns def when s is empty or malformed.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ParseFloatList parses a comma separated list, skipping blank items.
func ParseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", item)
		}
		out = append(out, v)
	}
	return out, nil
}
