// Command ocrclusterdemo reads a CSV of feature samples, clusters them,
// and prints the resulting prototype list. It exists to exercise
// Clusterer end to end; it owns no wire protocol or on-disk format
// beyond this toy CSV reader.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/ocrcluster/internal/obslog"
	"github.com/therealutkarshpriyadarshi/ocrcluster/internal/obsmetrics"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/clusterer"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/config"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/prototype"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "CSV path: char_id,dim0,dim1,... (required; '-' for stdin)")
		style      = flag.String("style", "automatic", "prototype style: spherical|elliptical|mixed|automatic")
		minSamples = flag.Float64("min-samples", 0.05, "fraction of num_char below which a cluster is degenerate")
		maxIllegal = flag.Float64("max-illegal", 0.2, "fraction of repeated char ids a cluster may contain")
		confidence = flag.Float64("confidence", 0.01, "chi-squared alpha")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ocrclusterdemo -input samples.csv [flags]")
		os.Exit(2)
	}

	level := obslog.INFO
	if *verbose {
		level = obslog.DEBUG
	}
	logger := obslog.New(level, os.Stderr)
	metrics := obsmetrics.New()

	samples, dim, err := readSamples(*inputPath)
	if err != nil {
		log.Fatalf("ocrclusterdemo: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("ocrclusterdemo: no samples read from %s", *inputPath)
	}

	descs := make([]paramspace.ParamDesc, dim)
	for i := range descs {
		lo, hi := rangeOf(samples, i)
		descs[i] = paramspace.New(lo, hi, false, false)
	}

	c := clusterer.NewClusterer(descs, clusterer.WithLogger(logger), clusterer.WithMetrics(metrics))
	for _, s := range samples {
		if _, err := c.AddSample(s.features, s.charID); err != nil {
			log.Fatalf("ocrclusterdemo: add sample: %v", err)
		}
	}

	cfg := config.Default()
	cfg.ProtoStyle = parseStyle(*style)
	cfg.MinSamples = float32(*minSamples)
	cfg.MaxIllegal = float32(*maxIllegal)
	cfg.Confidence = *confidence

	prototypes, err := c.ClusterSamples(cfg)
	if err != nil {
		log.Fatalf("ocrclusterdemo: cluster samples: %v", err)
	}
	defer c.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for i, p := range prototypes {
		fmt.Fprintf(w, "prototype %d: style=%s significant=%t mean=%v\n", i, styleLabel(p.Style), p.Significant, p.Mean)
	}
	fmt.Fprintf(w, "total prototypes: %d\n", len(prototypes))
}

type rawSample struct {
	charID   int
	features []float32
}

func readSamples(path string) ([]rawSample, int, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		r = f
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var samples []rawSample
	dim := -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if len(record) < 2 {
			continue
		}
		charID, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, 0, fmt.Errorf("invalid char_id %q: %w", record[0], err)
		}
		features := make([]float32, len(record)-1)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid feature %q: %w", field, err)
			}
			features[i] = float32(v)
		}
		if dim == -1 {
			dim = len(features)
		} else if len(features) != dim {
			return nil, 0, fmt.Errorf("row has %d features, expected %d", len(features), dim)
		}
		samples = append(samples, rawSample{charID: charID, features: features})
	}
	return samples, dim, nil
}

func rangeOf(samples []rawSample, dim int) (float32, float32) {
	lo, hi := samples[0].features[dim], samples[0].features[dim]
	for _, s := range samples[1:] {
		if v := s.features[dim]; v < lo {
			lo = v
		} else if v > hi {
			hi = v
		}
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

func parseStyle(s string) prototype.Style {
	switch strings.ToLower(s) {
	case "spherical":
		return prototype.Spherical
	case "elliptical":
		return prototype.Elliptical
	case "mixed":
		return prototype.Mixed
	default:
		return prototype.Automatic
	}
}

func styleLabel(s prototype.Style) string {
	switch s {
	case prototype.Spherical:
		return "spherical"
	case prototype.Elliptical:
		return "elliptical"
	case prototype.Mixed:
		return "mixed"
	default:
		return "automatic"
	}
}
