package questiontype

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/stemsi/prairie-backend/internal/model"
)

// TypeStatic is the tag for questions whose data is fixed in the question definition.
const TypeStatic = "Static"

// Static serves params, true answer and options straight from the question's
// options document: {"params": {...}, "true_answer": {...}, "options": {...}}.
type Static struct{}

type staticDefinition struct {
	Params     map[string]any `json:"params"`
	TrueAnswer map[string]any `json:"true_answer"`
	Options    map[string]any `json:"options"`
}

func (Static) Generate(_ context.Context, q *model.Question, _ *model.Course, _ string) ([]model.CourseIssue, Data, error) {
	if len(q.Options) == 0 {
		return nil, Data{}.Normalize(), nil
	}
	var def staticDefinition
	if err := json.Unmarshal(q.Options, &def); err != nil {
		issue := model.CourseIssue{
			Message: fmt.Sprintf("invalid question options: %v", err),
			Data:    map[string]any{"qid": q.QID},
			Fatal:   true,
		}
		return []model.CourseIssue{issue}, Data{}.Normalize(), nil
	}
	return nil, Data{Params: def.Params, TrueAnswer: def.TrueAnswer, Options: def.Options}.Normalize(), nil
}

func (Static) Prepare(_ context.Context, _ *model.Question, _ *model.Course, v *model.Variant) ([]model.CourseIssue, Data, error) {
	return nil, Data{
		Params:     maps.Clone(v.Params),
		TrueAnswer: maps.Clone(v.TrueAnswer),
		Options:    maps.Clone(v.Options),
	}.Normalize(), nil
}

// File serves "params.json" and "true_answer.json".
func (Static) File(_ context.Context, filename string, v *model.Variant, _ *model.Question, _ *model.Course) ([]model.CourseIssue, []byte, error) {
	var doc map[string]any
	switch filename {
	case "params.json":
		doc = v.Params
	case TrueAnswerFile:
		doc = v.TrueAnswer
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s: %w", filename, err)
	}
	return nil, data, nil
}
