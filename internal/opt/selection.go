package opt

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// SelectionMethod tags the parent selection strategy used by a generation.
type SelectionMethod int

const (
	// RouletteWheel picks member i with probability fitness_i / total fitness.
	// It does not read the selection target.
	RouletteWheel SelectionMethod = iota
	// Tournament draws two members; the fitter wins with probability equal
	// to the selection target.
	Tournament
	// Rank uses linear ranking with pressure 1 + selection target.
	Rank
)

// ErrNegativeFitness is returned when a fitness-proportionate draw sees a
// negative or NaN score.
var ErrNegativeFitness = errors.New("selection: fitness must be non-negative")

// ErrEmptyPopulation is returned when selecting from no candidates.
var ErrEmptyPopulation = errors.New("selection: empty population")

func (m SelectionMethod) String() string {
	switch m {
	case RouletteWheel:
		return "roulette"
	case Tournament:
		return "tournament"
	case Rank:
		return "rank"
	default:
		return fmt.Sprintf("SelectionMethod(%d)", int(m))
	}
}

// ParseSelectionMethod maps a CLI/API name to a SelectionMethod.
func ParseSelectionMethod(s string) (SelectionMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "roulette", "roulette-wheel", "roulette_wheel":
		return RouletteWheel, nil
	case "tournament":
		return Tournament, nil
	case "rank":
		return Rank, nil
	default:
		return 0, fmt.Errorf("unknown selection method: %q", s)
	}
}

// Select picks one index from scores using method.
func Select(method SelectionMethod, scores []float64, target float64, rng *rand.Rand) (int, error) {
	s, err := newSelector(method, scores, target)
	if err != nil {
		return 0, err
	}
	return s.pick(rng), nil
}

// selector is built once per generation so per-draw cost stays small.
type selector interface {
	pick(rng *rand.Rand) int
}

func newSelector(method SelectionMethod, scores []float64, target float64) (selector, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyPopulation
	}
	switch method {
	case RouletteWheel:
		return newRoulette(scores)
	case Tournament:
		return &tournament{scores: scores, pressure: target}, nil
	case Rank:
		return newRank(scores, target)
	default:
		return nil, fmt.Errorf("unknown selection method: %v", method)
	}
}

// roulette holds cumulative weights; a zero total means uniform draws.
type roulette struct {
	cumulative []float64
	total      float64
}

func newRoulette(weights []float64) (*roulette, error) {
	r := &roulette{cumulative: make([]float64, len(weights))}
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 {
			return nil, ErrNegativeFitness
		}
		r.total += w
		r.cumulative[i] = r.total
	}
	return r, nil
}

func (r *roulette) pick(rng *rand.Rand) int {
	n := len(r.cumulative)
	if r.total <= 0 || math.IsInf(r.total, 1) {
		return rng.Intn(n)
	}

	spin := rng.Float64() * r.total
	idx := sort.Search(n, func(i int) bool { return r.cumulative[i] > spin })
	if idx == n {
		idx = n - 1
	}
	return idx
}

type tournament struct {
	scores   []float64
	pressure float64
}

func (t *tournament) pick(rng *rand.Rand) int {
	n := len(t.scores)
	if n == 1 {
		return 0
	}

	a, b := rng.Intn(n), rng.Intn(n)
	better, worse := a, b
	if t.scores[b] > t.scores[a] || (t.scores[b] == t.scores[a] && b < a) {
		better, worse = b, a
	}
	if rng.Float64() < t.pressure {
		return better
	}
	return worse
}

// rank maps linear rank weights onto a roulette wheel.
type rank struct {
	order []int // order[r] is the population index holding rank r, worst first
	wheel *roulette
}

func newRank(scores []float64, target float64) (*rank, error) {
	if err := ValidateRate("selection_target", target); err != nil {
		return nil, err
	}

	n := len(scores)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Ties go to the earlier member.
	sort.Slice(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa < sb
		}
		return order[a] > order[b]
	})

	s := 1 + target
	weights := make([]float64, n)
	for r := range weights {
		if n == 1 {
			weights[r] = 1
			continue
		}
		weights[r] = (2 - s) + 2*(s-1)*float64(r)/float64(n-1)
	}

	wheel, err := newRoulette(weights)
	if err != nil {
		return nil, err
	}
	return &rank{order: order, wheel: wheel}, nil
}

func (r *rank) pick(rng *rand.Rand) int {
	return r.order[r.wheel.pick(rng)]
}
