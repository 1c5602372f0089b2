// Package tle loads, stores and refreshes the two-line element sets the
// orbit sampler propagates from.
package tle

import "time"

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// TLEDataset represents a complete set of TLE data from a source.
type TLEDataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []TLEEntry
}

// NewDataset builds a dataset from parsed entries and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []TLEEntry) *TLEDataset {
	ds := &TLEDataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
	}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}
