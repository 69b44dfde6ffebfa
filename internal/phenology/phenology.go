// Package phenology compares NDVI between migration phases of a bird species.
package phenology

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultSpecies = "Collared flycatcher"
	PhaseWintering = "Wintering"
	PhaseSpring    = "Spring Migration"
	DefaultColumn  = "ndvi"
)

var (
	// ErrTooFewValues is returned when a group has fewer than two usable values.
	ErrTooFewValues = errors.New("need at least two values per group")
	// ErrMissingColumn is returned when the dataset lacks a required column.
	ErrMissingColumn = errors.New("missing column")
)

// Observation is one row of the phenology dataset.
type Observation struct {
	Species string
	Phase   string
	Value   float64 // NaN when the cell is empty or not a number
}

// Query selects the two groups to compare.
type Query struct {
	Species string
	PhaseA  string
	PhaseB  string
	Column  string
}

// DefaultQuery compares wintering against spring migration NDVI of the collared flycatcher.
func DefaultQuery() Query {
	return Query{Species: DefaultSpecies, PhaseA: PhaseWintering, PhaseB: PhaseSpring, Column: DefaultColumn}
}

// Result of a two-sample t-test.
type Result struct {
	T      float64
	DF     float64
	P      float64
	NA, NB int
	MeanA  float64
	MeanB  float64
}

func (r Result) String() string {
	return fmt.Sprintf("P-Value: %.4e", r.P)
}

// ReadObservations reads species, phase and column from a CSV file with a header row.
func ReadObservations(path, column string) ([]Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseObservations(f, column)
}

// ParseObservations is ReadObservations over a reader.
func ParseObservations(r io.Reader, column string) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"species", "phase", column} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}
	si, pi, vi := idx["species"], idx["phase"], idx[column]

	var out []Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, Observation{
			Species: field(rec, si),
			Phase:   field(rec, pi),
			Value:   number(field(rec, vi)),
		})
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// number parses a cell; anything unparsable counts as missing.
func number(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Select returns the finite values of species in phase.
func Select(obs []Observation, species, phase string) []float64 {
	var out []float64
	for _, o := range obs {
		if o.Species != species || o.Phase != phase {
			continue
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			continue
		}
		out = append(out, o.Value)
	}
	return out
}

// Compare runs the t-test for q over obs.
func Compare(obs []Observation, q Query) (Result, error) {
	return TTestInd(Select(obs, q.Species, q.PhaseA), Select(obs, q.Species, q.PhaseB))
}

// TTestInd is Student's independent two-sample t-test with pooled variance and
// a two-sided p-value. NaN values are omitted.
func TTestInd(a, b []float64) (Result, error) {
	a, b = dropNaN(a), dropNaN(b)
	if len(a) < 2 || len(b) < 2 {
		return Result{}, fmt.Errorf("%w: got %d and %d", ErrTooFewValues, len(a), len(b))
	}

	na, nb := float64(len(a)), float64(len(b))
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)

	df := na + nb - 2
	pooled := ((na-1)*va + (nb-1)*vb) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))

	res := Result{DF: df, NA: len(a), NB: len(b), MeanA: ma, MeanB: mb}
	if se == 0 {
		// Identical constant groups: no evidence of a difference.
		if ma == mb {
			res.T, res.P = math.NaN(), math.NaN()
			return res, nil
		}
		res.T = math.Copysign(math.Inf(1), ma-mb)
		return res, nil
	}

	res.T = (ma - mb) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	res.P = 2 * dist.Survival(math.Abs(res.T))
	return res, nil
}

func dropNaN(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
