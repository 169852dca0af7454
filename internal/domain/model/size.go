package model

import (
	"fmt"
	"strings"
)

// SizeTag names one of the fixed image variants.
type SizeTag string

const (
	SizeOriginal SizeTag = "original"
	SizeNormal   SizeTag = "normal"
	SizeMedium   SizeTag = "medium"
	SizeSmall    SizeTag = "small"
	SizeTiny     SizeTag = "tiny"
)

// DerivativeSizes lists every resized tag, largest first.
var DerivativeSizes = []SizeTag{SizeNormal, SizeMedium, SizeSmall, SizeTiny}

// MaxDimension returns the bounding dimension in pixels for a derivative tag,
// or 0 for Original.
func (s SizeTag) MaxDimension() int {
	switch s {
	case SizeNormal:
		return 1920
	case SizeMedium:
		return 1024
	case SizeSmall:
		return 512
	case SizeTiny:
		return 128
	}
	return 0
}

// ParseSizeTag parses a case-insensitive size name. Empty input is Original.
func ParseSizeTag(s string) (SizeTag, error) {
	switch tag := SizeTag(strings.ToLower(strings.TrimSpace(s))); tag {
	case "":
		return SizeOriginal, nil
	case SizeOriginal, SizeNormal, SizeMedium, SizeSmall, SizeTiny:
		return tag, nil
	}
	return "", fmt.Errorf("unknown size %q", s)
}
