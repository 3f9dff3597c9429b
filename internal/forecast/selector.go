package forecast

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/encoding"
	"github.com/qa-forecast/backend/internal/features"
	"github.com/qa-forecast/backend/pkg/logger"
)

// Combination is one (sku, vendor, size, line) tuple observed in training
// data, with its learned dimension codes and suppression stats.
type Combination struct {
	SKU    string
	Vendor string
	Size   string
	Line   string

	SKUCode    int
	VendorCode int
	SizeCode   int
	LineCode   int

	TotalFreq int
	LastSeen  time.Time
}

// Selector bounds the forecast output by suppressing stale or low-volume
// combinations.
type Selector struct {
	RecencyDays  int
	MinFrequency int
}

type comboKey struct {
	sku, vendor, size, line string
}

// Select enumerates distinct combinations and keeps those last seen on or
// after (trainEnd - RecencyDays) with at least MinFrequency occurrences.
// Both thresholds are inclusive. Only training-observed tuples are encoded,
// so an encoding failure here is a selector defect and fails the run.
func (s *Selector) Select(rows []features.Row, enc *encoding.DimensionEncoders, trainEnd time.Time) ([]Combination, int, error) {
	freq := make(map[comboKey]int)
	lastSeen := make(map[comboKey]time.Time)
	for _, r := range rows {
		key := comboKey{r.SKU, r.Vendor, r.Size, r.Line}
		freq[key]++
		if r.EventDate.After(lastSeen[key]) {
			lastSeen[key] = r.EventDate
		}
	}

	keys := make([]comboKey, 0, len(freq))
	for key := range freq {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.sku != b.sku {
			return a.sku < b.sku
		}
		if a.vendor != b.vendor {
			return a.vendor < b.vendor
		}
		if a.size != b.size {
			return a.size < b.size
		}
		return a.line < b.line
	})

	cutoff := trainEnd.AddDate(0, 0, -s.RecencyDays)
	active := make([]Combination, 0, len(keys))
	for _, key := range keys {
		if lastSeen[key].Before(cutoff) || freq[key] < s.MinFrequency {
			continue
		}
		skuCode, vendorCode, sizeCode, lineCode, err := enc.Codes(key.sku, key.vendor, key.size, key.line)
		if err != nil {
			return nil, 0, fmt.Errorf("combination encoding failed for (%s, %s, %s, %s): %w",
				key.sku, key.vendor, key.size, key.line, err)
		}
		active = append(active, Combination{
			SKU:        key.sku,
			Vendor:     key.vendor,
			Size:       key.size,
			Line:       key.line,
			SKUCode:    skuCode,
			VendorCode: vendorCode,
			SizeCode:   sizeCode,
			LineCode:   lineCode,
			TotalFreq:  freq[key],
			LastSeen:   lastSeen[key],
		})
	}

	logger.Info("Combination suppression applied",
		zap.Int("total", len(keys)),
		zap.Int("active", len(active)),
		zap.Int("recency_days", s.RecencyDays),
		zap.Int("min_frequency", s.MinFrequency),
	)

	return active, len(keys), nil
}
