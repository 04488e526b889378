package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/airbusgeo/godal"

	"github.com/arden-geo/tsindex/internal/ard"
)

// loadStack reads every GeoTIFF matching pattern into an ARD stack, in
// lexical order (ARD naming conventions sort by date). maskBand is the
// 1-based index of the validity band within each file; 0 means all
// pixels are valid. All files must share dimensions and band count.
func loadStack(pattern string, maskBand int) (*ard.Stack, int, int, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("bad ARD pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, 0, 0, fmt.Errorf("no ARD files match %q", pattern)
	}
	sort.Strings(paths)

	var (
		frames []*ard.Frame
		width  int
		height int
	)
	for _, path := range paths {
		frame, w, h, err := loadFrame(path, maskBand)
		if err != nil {
			return nil, 0, 0, err
		}
		if width == 0 {
			width, height = w, h
		} else if w != width || h != height {
			return nil, 0, 0, fmt.Errorf("%s is %dx%d, expected %dx%d", path, w, h, width, height)
		}
		frames = append(frames, frame)
	}

	st := ard.NewStack(width*height, frames...)
	if err := st.Validate(); err != nil {
		return nil, 0, 0, err
	}
	return st, width, height, nil
}

// loadFrame reads one acquisition. The mask band, when present, is
// converted to 0/1 (any non-zero QA value counts as valid) and removed
// from the band list.
func loadFrame(path string, maskBand int) (*ard.Frame, int, int, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()

	w := ds.Structure().SizeX
	h := ds.Structure().SizeY
	cells := w * h

	bands := ds.Bands()
	if maskBand < 0 || maskBand > len(bands) {
		return nil, 0, 0, fmt.Errorf("%s: mask band %d outside 1..%d", path, maskBand, len(bands))
	}

	frame := &ard.Frame{}
	for i, band := range bands {
		if i+1 == maskBand {
			raw := make([]int16, cells)
			if err := band.Read(0, 0, raw, w, h); err != nil {
				return nil, 0, 0, fmt.Errorf("failed to read %s mask band: %w", path, err)
			}
			mask := make([]byte, cells)
			for p, v := range raw {
				if v != 0 {
					mask[p] = 1
				}
			}
			frame.Mask = mask
			continue
		}
		plane := make([]int16, cells)
		if err := band.Read(0, 0, plane, w, h); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read %s band %d: %w", path, i+1, err)
		}
		frame.Bands = append(frame.Bands, plane)
	}

	if frame.Mask == nil {
		frame.Mask = make([]byte, cells)
		for p := range frame.Mask {
			frame.Mask[p] = 1
		}
	}
	return frame, w, h, nil
}

// writeSeries writes a computed time series as a multi-band Int16
// GeoTIFF, one band per date.
func writeSeries(path string, ts *ard.TimeSeries, width, height int) error {
	ds, err := godal.Create(godal.GTiff, path, len(ts.TSS), godal.Int16, width, height)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer ds.Close()

	for t, plane := range ts.TSS {
		if err := ds.Bands()[t].Write(0, 0, plane, width, height); err != nil {
			return fmt.Errorf("failed to write %s band %d: %w", path, t+1, err)
		}
	}
	return nil
}
