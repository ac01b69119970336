package route

import (
	"context"
	"fmt"
)

// Classification is the structured verdict a Classifier produces: a
// complexity tier, the recommended destination route, and a human-readable
// rationale for the decision.
type Classification struct {
	Tier      string `json:"tier"`
	Route     string `json:"route"`
	Rationale string `json:"rationale"`
}

// ClassifyFunc inspects an input and produces a Classification. It must be
// pure: no side effects, no context mutation, so it is always safe to retry.
type ClassifyFunc func(ctx context.Context, input any) (Classification, error)

// Classifier is a pure classification primitive. Its output feeds Router
// policies and Delegator orchestration.
type Classifier struct {
	name string
	fn   ClassifyFunc
}

// NewClassifier creates a classifier primitive.
func NewClassifier(name string, fn ClassifyFunc) *Classifier {
	return &Classifier{name: name, fn: fn}
}

func (c *Classifier) Name() string {
	return c.name
}

func (c *Classifier) Execute(ctx context.Context, input any) (any, error) {
	verdict, err := c.fn(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	return verdict, nil
}

// ClassifierPolicy adapts a Classifier into a routing Policy: the verdict's
// Route becomes the routing key and its Rationale the recorded reason.
func ClassifierPolicy(c *Classifier) Policy {
	return PolicyFunc(func(ctx context.Context, input any) (string, string, error) {
		out, err := c.Execute(ctx, input)
		if err != nil {
			return "", "", err
		}
		verdict, ok := out.(Classification)
		if !ok {
			return "", "", fmt.Errorf("classifier %s returned %T, want Classification", c.Name(), out)
		}
		return verdict.Route, verdict.Rationale, nil
	})
}
