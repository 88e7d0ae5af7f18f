package data

import (
	"errors"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrSchemaMismatch is returned when the input table lacks an expected
// column or carries a value of the wrong type.
var ErrSchemaMismatch = errors.New("schema mismatch")

// DefaultPredictors are the twelve covariates averaged along each path.
var DefaultPredictors = []string{
	"elevation_mean",
	"roughness_mean",
	"forest_edge_mean",
	"tundra_edge_mean",
	"alnus_mean",
	"betshr_mean",
	"dectre_mean",
	"erivag_mean",
	"picgla_mean",
	"picmar_mean",
	"salshr_mean",
	"wetsed_mean",
}

const (
	MooseYearColumn  = "mooseYear_id"
	FullPathColumn   = "fullPath_id"
	CalfStatusColumn = "calfStatus"
	ResponseColumn   = "response"
)

// Observation is one labelled path. Index is the row's position in the
// Dataset it was loaded into and is stable across Subset/Shuffle copies
// only through the Observation value itself.
type Observation struct {
	Index       int
	MooseYearID string
	FullPathID  string
	CalfStatus  int
	Predictors  []float64
	Response    int
}

// ID is the composite subject/year/path identifier.
func (o Observation) ID() string {
	return o.MooseYearID + "/" + o.FullPathID
}

type Dataset struct {
	PredictorNames []string
	Observations   []Observation
}

func (ds *Dataset) Len() int {
	return len(ds.Observations)
}

func (ds *Dataset) NumPredictors() int {
	return len(ds.PredictorNames)
}

func (ds *Dataset) Labels() []int {
	y := make([]int, len(ds.Observations))
	for i, obs := range ds.Observations {
		y[i] = obs.Response
	}
	return y
}

// LabelsAt returns the responses of the given rows, in order.
func (ds *Dataset) LabelsAt(rows []int) []int {
	y := make([]int, len(rows))
	for i, r := range rows {
		y[i] = ds.Observations[r].Response
	}
	return y
}

// Matrix copies the predictor values of the given rows into a dense
// rows×predictors matrix. A nil rows slice selects every observation.
func (ds *Dataset) Matrix(rows []int) *mat.Dense {
	if rows == nil {
		rows = make([]int, len(ds.Observations))
		for i := range rows {
			rows[i] = i
		}
	}
	p := ds.NumPredictors()
	if len(rows) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		m.SetRow(i, ds.Observations[r].Predictors)
	}
	return m
}

// Column returns every value of predictor j.
func (ds *Dataset) Column(j int) []float64 {
	col := make([]float64, len(ds.Observations))
	for i, obs := range ds.Observations {
		col[i] = obs.Predictors[j]
	}
	return col
}

// ClassCounts maps each response value to its number of observations.
func (ds *Dataset) ClassCounts() map[int]int {
	return CountClasses(ds.Labels())
}

// FilterCalfStatus keeps the observations whose calf status equals status
// and renumbers Index to the new positions.
func (ds *Dataset) FilterCalfStatus(status int) *Dataset {
	out := &Dataset{PredictorNames: ds.PredictorNames}
	for _, obs := range ds.Observations {
		if obs.CalfStatus == status {
			obs.Index = len(out.Observations)
			out.Observations = append(out.Observations, obs)
		}
	}
	return out
}

// Shuffle returns a seeded permutation of the dataset with Index renumbered.
func (ds *Dataset) Shuffle(seed int64) *Dataset {
	out := &Dataset{
		PredictorNames: ds.PredictorNames,
		Observations:   make([]Observation, len(ds.Observations)),
	}
	copy(out.Observations, ds.Observations)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out.Observations), func(i, j int) {
		out.Observations[i], out.Observations[j] = out.Observations[j], out.Observations[i]
	})
	for i := range out.Observations {
		out.Observations[i].Index = i
	}
	return out
}

func CountClasses(y []int) map[int]int {
	counts := make(map[int]int)
	for _, label := range y {
		counts[label]++
	}
	return counts
}

// SortedClasses returns the distinct labels of y in ascending order.
func SortedClasses(y []int) []int {
	counts := CountClasses(y)
	classes := make([]int, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	return classes
}
