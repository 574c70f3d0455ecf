package validator

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTemperatureBounds(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0.0, 0.5, 1.0} {
		if err := Temperature(v); err != nil {
			t.Fatalf("Temperature(%v) should be valid: %v", v, err)
		}
	}
	for _, v := range []float64{-0.01, 1.01, 2.0} {
		if err := Temperature(v); err == nil {
			t.Fatalf("Temperature(%v) should be rejected", v)
		}
	}
}

func TestMaxTokens(t *testing.T) {
	t.Parallel()

	if err := MaxTokens(1); err != nil {
		t.Fatalf("MaxTokens(1) should be valid: %v", err)
	}
	if err := MaxTokens(0); err == nil {
		t.Fatalf("MaxTokens(0) should be rejected")
	}
	if err := MaxTokens(-5); err == nil {
		t.Fatalf("MaxTokens(-5) should be rejected")
	}
}

func TestExperimentName(t *testing.T) {
	t.Parallel()

	if err := ExperimentName("/Shared/experiments"); err != nil {
		t.Fatalf("absolute path should be valid: %v", err)
	}
	if err := ExperimentName(""); err == nil {
		t.Fatalf("empty name should be rejected")
	}
	if err := ExperimentName("Shared/experiments"); err == nil {
		t.Fatalf("relative path should be rejected")
	}
}

func TestUserPromptTemplate(t *testing.T) {
	t.Parallel()

	if err := UserPromptTemplate("Answer this: {question}"); err != nil {
		t.Fatalf("template with placeholder should be valid: %v", err)
	}
	if err := UserPromptTemplate("Answer this"); err == nil {
		t.Fatalf("template without placeholder should be rejected")
	}
}

func TestProfileName(t *testing.T) {
	t.Parallel()

	if err := ProfileName("production"); err != nil {
		t.Fatalf("ProfileName: %v", err)
	}
	if err := ProfileName("   "); err == nil {
		t.Fatalf("blank name should be rejected")
	}
	if err := ProfileName(strings.Repeat("x", 101)); err == nil {
		t.Fatalf("over-long name should be rejected")
	}
}

type fakeEndpoints struct {
	names []string
	err   error
}

func (f *fakeEndpoints) ListEndpointNames(ctx context.Context) ([]string, error) {
	return f.names, f.err
}

type fakeExperiments struct {
	exists bool
	err    error
}

func (f *fakeExperiments) ExperimentExists(ctx context.Context, name string) (bool, error) {
	return f.exists, f.err
}

func TestCheckEndpoint(t *testing.T) {
	t.Parallel()

	live := &Live{Endpoints: &fakeEndpoints{names: []string{"databricks-claude-sonnet-4-5", "custom-model"}}}

	result, err := live.CheckEndpoint(context.Background(), "custom-model")
	if err != nil {
		t.Fatalf("CheckEndpoint: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %+v", result)
	}

	result, err = live.CheckEndpoint(context.Background(), "missing")
	if err != nil {
		t.Fatalf("CheckEndpoint: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected invalid result for unknown endpoint")
	}

	live = &Live{Endpoints: &fakeEndpoints{err: errors.New("workspace down")}}
	if _, err := live.CheckEndpoint(context.Background(), "custom-model"); err == nil {
		t.Fatalf("expected error when listing fails")
	}
}

func TestCheckExperiment(t *testing.T) {
	t.Parallel()

	live := &Live{Experiments: &fakeExperiments{exists: true}}
	result, err := live.CheckExperiment(context.Background(), "/Shared/experiments")
	if err != nil {
		t.Fatalf("CheckExperiment: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %+v", result)
	}

	live = &Live{Experiments: &fakeExperiments{exists: false}}
	result, err = live.CheckExperiment(context.Background(), "/Shared/experiments")
	if err != nil {
		t.Fatalf("CheckExperiment: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected invalid result for missing experiment")
	}

	if _, err := live.CheckExperiment(context.Background(), "relative/path"); err == nil {
		t.Fatalf("expected validation error for relative path")
	}
}
