// Package classifier maps free-text activity names to life spheres. Keyword
// lookup runs first; an optional AI suggester is consulted when no keyword
// matches. Classification is advisory: the user may always pick a sphere by
// hand.
package classifier

import (
	"context"
	"log/slog"
	"strings"

	"workingonit/backend/internal/model"
)

type Method string

const (
	MethodKeyword Method = "keyword"
	MethodAI      Method = "ai"
	MethodDefault Method = "default"
)

// MinSuggestLength is the shortest name worth suggesting a sphere for.
const MinSuggestLength = 3

// Suggester asks an external service for a sphere. Implementations return the
// raw token they received; validation happens in the Classifier.
type Suggester interface {
	SuggestSphere(ctx context.Context, activityName string) (string, error)
}

type Result struct {
	Sphere  model.Sphere `json:"sphere"`
	Method  Method       `json:"method"`
	Keyword string       `json:"keyword,omitempty"`
}

type Classifier struct {
	ai  Suggester
	log *slog.Logger
}

// New builds a classifier. ai may be nil, which disables the AI fallback.
func New(log *slog.Logger, ai Suggester) *Classifier {
	return &Classifier{
		ai:  ai,
		log: log.With("component", "classifier"),
	}
}

// MatchKeyword returns the first sphere, in catalog order, that has a keyword
// contained in name.
func MatchKeyword(name string) (model.Sphere, string, bool) {
	lower := strings.ToLower(name)
	for _, sphere := range model.Spheres {
		for _, kw := range Keywords[sphere] {
			if strings.Contains(lower, kw) {
				return sphere, kw, true
			}
		}
	}
	return "", "", false
}

// Suggest returns a keyword or AI suggestion without applying the default.
func (c *Classifier) Suggest(ctx context.Context, name string) (Result, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, false
	}

	if sphere, kw, ok := MatchKeyword(name); ok {
		c.log.DebugContext(ctx, "keyword match",
			slog.String("activity", name),
			slog.String("sphere", sphere.String()),
			slog.String("keyword", kw),
		)
		return Result{Sphere: sphere, Method: MethodKeyword, Keyword: kw}, true
	}

	if sphere, ok := c.askAI(ctx, name); ok {
		return Result{Sphere: sphere, Method: MethodAI}, true
	}
	return Result{}, false
}

// Classify always yields a sphere, falling back to model.DefaultSphere.
func (c *Classifier) Classify(ctx context.Context, name string) Result {
	if res, ok := c.Suggest(ctx, name); ok {
		return res
	}
	return Result{Sphere: model.DefaultSphere, Method: MethodDefault}
}

func (c *Classifier) askAI(ctx context.Context, name string) (model.Sphere, bool) {
	if c.ai == nil {
		return "", false
	}

	raw, err := c.ai.SuggestSphere(ctx, name)
	if err != nil {
		c.log.WarnContext(ctx, "ai suggestion failed",
			slog.String("activity", name),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	sphere, ok := model.ParseSphere(raw)
	if !ok {
		c.log.WarnContext(ctx, "ai returned unknown sphere",
			slog.String("activity", name),
			slog.String("response", raw),
		)
		return "", false
	}

	c.log.InfoContext(ctx, "ai suggestion",
		slog.String("activity", name),
		slog.String("sphere", sphere.String()),
	)
	return sphere, true
}
