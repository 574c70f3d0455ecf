// Package validator holds the field-level validation rules for profile
// sub-configs plus live checks against the Databricks workspace.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
)

// QuestionPlaceholder must appear in every user prompt template; it is
// substituted with the user's question at chat time.
const QuestionPlaceholder = "{question}"

// EndpointLister provides the serving endpoint names visible to the
// configured workspace token.
type EndpointLister interface {
	ListEndpointNames(ctx context.Context) ([]string, error)
}

// ExperimentChecker reports whether an MLflow experiment exists.
type ExperimentChecker interface {
	ExperimentExists(ctx context.Context, name string) (bool, error)
}

// Endpoint checks a serving endpoint name field.
func Endpoint(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("llm_endpoint must not be empty")
	}
	return nil
}

// Temperature checks a sampling temperature; the valid range is 0.0 to
// 1.0 inclusive.
func Temperature(t float64) error {
	if t < 0.0 || t > 1.0 {
		return apperr.Validation("llm_temperature must be between 0.0 and 1.0, got %v", t)
	}
	return nil
}

// MaxTokens checks a completion token budget.
func MaxTokens(n int) error {
	if n <= 0 {
		return apperr.Validation("llm_max_tokens must be greater than 0, got %d", n)
	}
	return nil
}

// ExperimentName checks an MLflow experiment path.
func ExperimentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("experiment_name must not be empty")
	}
	if !strings.HasPrefix(name, "/") {
		return apperr.Validation("experiment_name must be an absolute workspace path starting with /")
	}
	return nil
}

// UserPromptTemplate checks that the template carries the question
// placeholder.
func UserPromptTemplate(tmpl string) error {
	if !strings.Contains(tmpl, QuestionPlaceholder) {
		return apperr.Validation("user_prompt_template must contain the %s placeholder", QuestionPlaceholder)
	}
	return nil
}

// ProfileName checks a profile name field.
func ProfileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("profile name must not be empty")
	}
	if len(name) > 100 {
		return apperr.Validation("profile name must be at most 100 characters")
	}
	return nil
}

// Result is the outcome of a live validation check.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Live performs validations that require calls to the Databricks
// workspace.
type Live struct {
	Endpoints   EndpointLister
	Experiments ExperimentChecker
}

// CheckEndpoint verifies that a serving endpoint exists in the
// workspace.
func (l *Live) CheckEndpoint(ctx context.Context, name string) (*Result, error) {
	if err := Endpoint(name); err != nil {
		return nil, err
	}
	names, err := l.Endpoints.ListEndpointNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list serving endpoints: %w", err)
	}
	for _, n := range names {
		if n == name {
			return &Result{Valid: true, Message: fmt.Sprintf("endpoint %q is available", name)}, nil
		}
	}
	return &Result{Valid: false, Message: fmt.Sprintf("endpoint %q not found in workspace", name)}, nil
}

// CheckExperiment verifies that an MLflow experiment exists.
func (l *Live) CheckExperiment(ctx context.Context, name string) (*Result, error) {
	if err := ExperimentName(name); err != nil {
		return nil, err
	}
	exists, err := l.Experiments.ExperimentExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up experiment: %w", err)
	}
	if exists {
		return &Result{Valid: true, Message: fmt.Sprintf("experiment %q exists", name)}, nil
	}
	return &Result{Valid: false, Message: fmt.Sprintf("experiment %q not found", name)}, nil
}
