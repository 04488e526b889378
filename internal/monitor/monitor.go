// Package monitor extracts probe-pixel series from engine output and
// renders them for QA: CSV for spreadsheets, PNG via gonum/plot, and an
// HTML line chart via go-echarts.
package monitor

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/arden-geo/tsindex/internal/ard"
)

// ProbeSeries is one pixel's time series for one index.
type ProbeSeries struct {
	Index  string
	Pixel  int
	Nodata int16
	Values []int16
	RMS    []int16
}

// Extract pulls the series of the probe pixels out of an output buffer.
// Pixels outside the buffer are skipped.
func Extract(ts *ard.TimeSeries, indexID string, pixels []int, nodata int16) []ProbeSeries {
	if ts == nil || len(ts.TSS) == 0 {
		return nil
	}
	cells := len(ts.TSS[0])

	var out []ProbeSeries
	for _, p := range pixels {
		if p < 0 || p >= cells {
			continue
		}
		s := ProbeSeries{Index: indexID, Pixel: p, Nodata: nodata}
		s.Values = make([]int16, len(ts.TSS))
		for t := range ts.TSS {
			s.Values[t] = ts.TSS[t][p]
		}
		if ts.RMS != nil {
			s.RMS = make([]int16, len(ts.RMS))
			for t := range ts.RMS {
				s.RMS[t] = ts.RMS[t][p]
			}
		}
		out = append(out, s)
	}
	return out
}

// SampleRecord is the CSV row schema for probe exports.
type SampleRecord struct {
	Index   string `csv:"index"`
	Pixel   int    `csv:"pixel"`
	DateIdx int    `csv:"date_idx"`
	Value   int16  `csv:"value"`
	RMS     string `csv:"rms"`
}

// WriteCSV exports probe series as long-format CSV.
func WriteCSV(path string, series []ProbeSeries) error {
	records := make([]*SampleRecord, 0)
	for _, s := range series {
		for t, v := range s.Values {
			rec := &SampleRecord{Index: s.Index, Pixel: s.Pixel, DateIdx: t, Value: v}
			if s.RMS != nil {
				rec.RMS = fmt.Sprintf("%d", s.RMS[t])
			}
			records = append(records, rec)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create probe CSV: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("failed to write probe CSV: %w", err)
	}
	return nil
}

// Probe is one probe-pixel request row, loadable from CSV.
type Probe struct {
	Pixel int    `csv:"pixel"`
	Label string `csv:"label"`
}

// LoadProbes reads a probe list CSV with columns pixel,label.
func LoadProbes(path string) ([]Probe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open probe list: %w", err)
	}
	defer f.Close()

	var probes []Probe
	if err := gocsv.UnmarshalFile(f, &probes); err != nil {
		return nil, fmt.Errorf("failed to parse probe list %s: %w", path, err)
	}
	return probes, nil
}
