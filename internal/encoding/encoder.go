package encoding

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownCategory is the sentinel assigned to NULL/blank categorical values
// before encoding.
const UnknownCategory = "UNKNOWN"

// LabelEncoder maps category strings to dense zero-based codes in sorted
// class order. The mapping learned at training time is reused verbatim at
// forecast time; a value outside the learned classes is an error, never a
// silent re-encode.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// Fit learns the class set from the given values. Blank values are
// normalized to the UNKNOWN sentinel first.
func Fit(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[Normalize(v)] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Transform returns the code for a value learned during Fit.
func (e *LabelEncoder) Transform(value string) (int, error) {
	code, ok := e.index[Normalize(value)]
	if !ok {
		return 0, fmt.Errorf("unseen category %q", value)
	}
	return code, nil
}

// Classes returns the learned classes in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Normalize maps blank values to the UNKNOWN sentinel.
func Normalize(value string) string {
	if strings.TrimSpace(value) == "" {
		return UnknownCategory
	}
	return value
}

// DimensionEncoders holds one encoder per categorical dimension.
type DimensionEncoders struct {
	SKU    *LabelEncoder
	Vendor *LabelEncoder
	Size   *LabelEncoder
	Line   *LabelEncoder
}

// FitDimensions learns the four dimension encoders from raw column values.
func FitDimensions(skus, vendors, sizes, lines []string) *DimensionEncoders {
	return &DimensionEncoders{
		SKU:    Fit(skus),
		Vendor: Fit(vendors),
		Size:   Fit(sizes),
		Line:   Fit(lines),
	}
}

// Codes encodes one (sku, vendor, size, line) tuple with the learned
// mappings.
func (d *DimensionEncoders) Codes(sku, vendor, size, line string) (skuCode, vendorCode, sizeCode, lineCode int, err error) {
	if skuCode, err = d.SKU.Transform(sku); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("sku: %w", err)
	}
	if vendorCode, err = d.Vendor.Transform(vendor); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("vendor: %w", err)
	}
	if sizeCode, err = d.Size.Transform(size); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("size: %w", err)
	}
	if lineCode, err = d.Line.Transform(line); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("line: %w", err)
	}
	return skuCode, vendorCode, sizeCode, lineCode, nil
}
