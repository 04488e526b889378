// Command tsindex computes spectral-index time series over a stack of
// co-registered ARD GeoTIFFs. The engine itself owns no file formats;
// this binary does the raster and table I/O around it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/schollz/progressbar/v3"

	"github.com/arden-geo/tsindex/internal/ard"
	"github.com/arden-geo/tsindex/internal/cite"
	"github.com/arden-geo/tsindex/internal/config"
	"github.com/arden-geo/tsindex/internal/endmember"
	"github.com/arden-geo/tsindex/internal/index"
	"github.com/arden-geo/tsindex/internal/monitor"
	"github.com/arden-geo/tsindex/internal/sensor"
	"github.com/arden-geo/tsindex/internal/store"
	"github.com/arden-geo/tsindex/internal/unmix"
)

var (
	ardPattern = flag.String("ard", "", "Glob of ARD GeoTIFFs, one file per date (required)")
	maskBand   = flag.Int("maskband", 0, "1-based validity band within each ARD file (0 = all valid)")
	maskFile   = flag.String("mask", "", "Optional single-band GeoTIFF global mask (0 disables a pixel)")
	configPath = flag.String("config", "", "JSON tuning config")
	sensorName = flag.String("sensor", "", "Sensor preset or JSON sensor map path (overrides config)")
	indicesCSV = flag.String("indices", "", "Comma-separated index identifiers (overrides config)")
	emFile     = flag.String("endmembers", "", "Endmember CSV for SMA (overrides config)")
	outDir     = flag.String("out", ".", "Output directory for GeoTIFF series")
	probesCSV  = flag.String("probes", "", "Probe-pixel CSV (pixel,label) for QA exports")
	workers    = flag.Int("workers", 0, "Worker count (0 = one per CPU; overrides config)")
)

func main() {
	flag.Parse()
	if *ardPattern == "" {
		log.Fatal("-ard is required")
	}

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	godal.RegisterAll()

	sen, err := resolveSensor(*cfg.Sensor)
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}

	st, width, height, err := loadStack(*ardPattern, *maskBand)
	if err != nil {
		log.Fatalf("ard: %v", err)
	}
	log.Printf("[tsindex] loaded %d dates of %dx%d pixels, %d bands", st.Dates(), width, height, st.NBands())

	var globalMask []byte
	if *maskFile != "" {
		mf, w, h, err := loadFrame(*maskFile, 1)
		if err != nil {
			log.Fatalf("mask: %v", err)
		}
		if w != width || h != height {
			log.Fatalf("mask: %s is %dx%d, expected %dx%d", *maskFile, w, h, width, height)
		}
		globalMask = mf.Mask
	}

	ids := make([]index.ID, 0, len(cfg.Indices))
	for _, s := range cfg.Indices {
		id, ok := index.Parse(s)
		if !ok {
			log.Printf("[tsindex] unknown index %q will be skipped by the engine", s)
		}
		ids = append(ids, id)
	}

	eng := &index.Engine{
		Sensor:    sen,
		Citations: cite.NewRegistry(),
		Workers:   *cfg.Workers,
	}
	if needsSMA(ids) {
		eng.SMA, err = buildSolver(cfg)
		if err != nil {
			log.Fatalf("sma: %v", err)
		}
	}

	nodata := int16(*cfg.Nodata)

	var db *store.Store
	var runID string
	if cfg.DBPath != nil && *cfg.DBPath != "" {
		db, err = store.Open(*cfg.DBPath)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer db.Close()
		runID, err = db.CreateRun(sen.Name, cfg.Indices, st.Cells(), st.Dates(), nodata)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
	}

	probes := probePixels(cfg)

	bar := progressbar.Default(int64(len(ids)), "Computing indices")
	var probed []monitor.ProbeSeries
	for _, id := range ids {
		withRMS := id == index.SMA && eng.SMA != nil && eng.SMA.Params().EmitRMS
		ts := ard.NewTimeSeries(st.Dates(), st.Cells(), withRMS)
		if err := eng.Compute(st, globalMask, ts, id, nodata); err != nil {
			log.Fatalf("%s: %v", id, err)
		}

		outPath := filepath.Join(*outDir, fmt.Sprintf("%s.tif", strings.ToLower(string(id))))
		if err := writeSeries(outPath, ts, width, height); err != nil {
			log.Fatalf("%s: %v", id, err)
		}

		if db != nil {
			if err := db.InsertSeries(runID, string(id), ts, probes); err != nil {
				log.Fatalf("store: %v", err)
			}
		}
		if len(probes) > 0 {
			probed = append(probed, monitor.Extract(ts, string(id), probes, nodata)...)
		}
		bar.Add(1)
	}

	if db != nil {
		if err := db.FinishRun(runID); err != nil {
			log.Printf("[tsindex] failed to finish run: %v", err)
		}
	}

	if len(probed) > 0 {
		if err := monitor.WriteCSV(filepath.Join(*outDir, "probes.csv"), probed); err != nil {
			log.Printf("[tsindex] probe CSV: %v", err)
		}
		if err := monitor.RenderPNG(filepath.Join(*outDir, "probes.png"), probed); err != nil {
			log.Printf("[tsindex] probe plot: %v", err)
		}
		if err := monitor.RenderHTML(filepath.Join(*outDir, "probes.html"), probed); err != nil {
			log.Printf("[tsindex] probe chart: %v", err)
		}
	}

	fmt.Fprintln(os.Stderr, "References:")
	eng.Citations.Write(os.Stderr)
}

// applyFlags copies explicitly-set CLI flags over the config.
func applyFlags(cfg *config.TuningConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sensor":
			cfg.Sensor = sensorName
		case "indices":
			cfg.Indices = strings.Split(*indicesCSV, ",")
		case "endmembers":
			cfg.Endmembers = emFile
		case "workers":
			cfg.Workers = workers
		}
	})
}

func resolveSensor(name string) (*sensor.Map, error) {
	if strings.HasSuffix(name, ".json") {
		return sensor.Load(name)
	}
	return sensor.Preset(name)
}

func needsSMA(ids []index.ID) bool {
	for _, id := range ids {
		if id == index.SMA {
			return true
		}
	}
	return false
}

func buildSolver(cfg *config.TuningConfig) (*unmix.Solver, error) {
	if cfg.Endmembers == nil || *cfg.Endmembers == "" {
		return nil, fmt.Errorf("SMA selected but no endmember table configured")
	}
	table, err := endmember.LoadCSV(*cfg.Endmembers)
	if err != nil {
		return nil, err
	}
	p := unmix.Params{SelectedEndmember: 1}
	if s := cfg.SMA; s != nil {
		if s.Positivity != nil {
			p.Positivity = *s.Positivity
		}
		if s.SumToOne != nil {
			p.SumToOne = *s.SumToOne
		}
		if s.ShadeNormalize != nil {
			p.ShadeNormalize = *s.ShadeNormalize
		}
		if s.EmitRMS != nil {
			p.EmitRMS = *s.EmitRMS
		}
		if s.SelectedEndmember != nil {
			p.SelectedEndmember = *s.SelectedEndmember
		}
	}
	return unmix.NewSolver(table, p)
}

func probePixels(cfg *config.TuningConfig) []int {
	pixels := append([]int(nil), cfg.ProbePixels...)
	if *probesCSV != "" {
		probes, err := monitor.LoadProbes(*probesCSV)
		if err != nil {
			log.Fatalf("probes: %v", err)
		}
		for _, pr := range probes {
			pixels = append(pixels, pr.Pixel)
		}
	}
	return pixels
}
