// Package questiontype holds the per-type strategies that turn a question
// definition into variant data.
package questiontype

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stemsi/prairie-backend/internal/model"
)

var (
	// ErrUnknownType is returned when no strategy is registered for a question type.
	ErrUnknownType = errors.New("unknown question type")
	// ErrFileNotFound is returned by File for names a strategy cannot produce.
	ErrFileNotFound = errors.New("file not found")
)

// TrueAnswerFile is the generated file holding a variant's true answer.
const TrueAnswerFile = "true_answer.json"

// RevealsAnswer reports whether a generated file exposes the true answer and
// must only be served to instructors.
func RevealsAnswer(filename string) bool {
	return filename == TrueAnswerFile
}

// Data is the params / true answer / options triple produced by Generate
// and Prepare.
type Data struct {
	Params     map[string]any
	TrueAnswer map[string]any
	Options    map[string]any
}

// Normalize replaces nil maps with empty ones.
func (d Data) Normalize() Data {
	if d.Params == nil {
		d.Params = map[string]any{}
	}
	if d.TrueAnswer == nil {
		d.TrueAnswer = map[string]any{}
	}
	if d.Options == nil {
		d.Options = map[string]any{}
	}
	return d
}

// Strategy is implemented once per question type. Course issues are the
// channel for authoring problems; the error return is for system failures.
type Strategy interface {
	Generate(ctx context.Context, q *model.Question, course *model.Course, seed string) ([]model.CourseIssue, Data, error)
	Prepare(ctx context.Context, q *model.Question, course *model.Course, v *model.Variant) ([]model.CourseIssue, Data, error)
	File(ctx context.Context, filename string, v *model.Variant, q *model.Question, course *model.Course) ([]model.CourseIssue, []byte, error)
}

// Registry maps a question type tag to its strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// NewDefaultRegistry returns a registry with the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeStatic, Static{})
	r.Register(TypeRandom, Random{})
	return r
}

// Register adds or replaces the strategy for a type tag.
func (r *Registry) Register(questionType string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[questionType] = s
}

// Get returns the strategy for a type tag.
func (r *Registry) Get(questionType string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[questionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, questionType)
	}
	return s, nil
}

// Types lists the registered type tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
