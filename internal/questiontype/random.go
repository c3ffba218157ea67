package questiontype

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/stemsi/prairie-backend/internal/model"
)

// TypeRandom is the tag for questions with integer parameters drawn from the variant seed.
const TypeRandom = "Random"

// Random draws integer params from declared ranges and computes the true
// answer as the sum or product of some of them. Options document:
//
//	{"params": {"a": {"min": 1, "max": 9}}, "answer": {"name": "c", "op": "sum", "of": ["a", "b"]}}
type Random struct{}

type intRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type randomAnswer struct {
	Name string   `json:"name"`
	Op   string   `json:"op"`
	Of   []string `json:"of"`
}

type randomDefinition struct {
	Params map[string]intRange `json:"params"`
	Answer *randomAnswer       `json:"answer"`
}

// drawSpan returns an offset in [0, max-min]. The span is computed in uint64
// so ranges wider than math.MaxInt64 do not overflow.
func drawSpan(rng *rand.Rand, r intRange) uint64 {
	span := uint64(r.Max) - uint64(r.Min)
	if span == math.MaxUint64 {
		return rng.Uint64()
	}
	return rng.Uint64N(span + 1)
}

func fatal(q *model.Question, format string, args ...any) []model.CourseIssue {
	return []model.CourseIssue{{
		Message: fmt.Sprintf(format, args...),
		Data:    map[string]any{"qid": q.QID},
		Fatal:   true,
	}}
}

// seedSource maps any seed string onto a PRNG stream.
func seedSource(seed string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum>>1|1))
}

func (Random) Generate(_ context.Context, q *model.Question, _ *model.Course, seed string) ([]model.CourseIssue, Data, error) {
	var def randomDefinition
	if err := json.Unmarshal(q.Options, &def); err != nil {
		return fatal(q, "invalid question options: %v", err), Data{}.Normalize(), nil
	}

	// Draw in name order so the same seed always yields the same values.
	names := slices.Sorted(maps.Keys(def.Params))

	var issues []model.CourseIssue
	rng := seedSource(seed)
	params := make(map[string]any, len(names))
	values := make(map[string]int64, len(names))
	for _, name := range names {
		r := def.Params[name]
		if r.Min > r.Max {
			issues = append(issues, fatal(q, "param %q: min %d is greater than max %d", name, r.Min, r.Max)...)
			continue
		}
		v := r.Min + int64(drawSpan(rng, r))
		params[name] = v
		values[name] = v
	}

	trueAnswer := map[string]any{}
	if def.Answer != nil {
		result, issue := evalAnswer(q, def.Answer, values)
		if issue != nil {
			issues = append(issues, issue...)
		} else {
			trueAnswer[def.Answer.Name] = result
		}
	}

	return issues, Data{Params: params, TrueAnswer: trueAnswer}.Normalize(), nil
}

func evalAnswer(q *model.Question, a *randomAnswer, values map[string]int64) (int64, []model.CourseIssue) {
	if a.Name == "" {
		return 0, fatal(q, "answer name is required")
	}
	var result int64
	switch a.Op {
	case "sum":
		result = 0
	case "product":
		result = 1
	default:
		return 0, fatal(q, "unsupported answer op %q", a.Op)
	}
	for _, name := range a.Of {
		v, ok := values[name]
		if !ok {
			return 0, fatal(q, "answer references undefined param %q", name)
		}
		if a.Op == "sum" {
			result += v
		} else {
			result *= v
		}
	}
	return result, nil
}

func (Random) Prepare(_ context.Context, _ *model.Question, _ *model.Course, v *model.Variant) ([]model.CourseIssue, Data, error) {
	options := maps.Clone(v.Options)
	if options == nil {
		options = map[string]any{}
	}
	options["prepared"] = true
	return nil, Data{
		Params:     maps.Clone(v.Params),
		TrueAnswer: maps.Clone(v.TrueAnswer),
		Options:    options,
	}.Normalize(), nil
}

// File renders "params.json" or a two-column "params.csv".
func (Random) File(_ context.Context, filename string, v *model.Variant, _ *model.Question, _ *model.Course) ([]model.CourseIssue, []byte, error) {
	switch filename {
	case "params.json":
		data, err := json.Marshal(v.Params)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal params: %w", err)
		}
		return nil, data, nil
	case "params.csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"name", "value"})
		for _, name := range slices.Sorted(maps.Keys(v.Params)) {
			_ = w.Write([]string{name, formatValue(v.Params[name])})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, nil, fmt.Errorf("write csv: %w", err)
		}
		return nil, buf.Bytes(), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
