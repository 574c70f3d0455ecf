// Package dbx is a minimal REST client for the Databricks workspace
// APIs the app depends on: serving endpoints, invocations, the current
// user, and MLflow experiments.
package dbx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client talks to one Databricks workspace using a personal access
// token or service principal token.
type Client struct {
	host   string
	token  string
	client *http.Client
}

// New builds a workspace client. host must include the scheme.
func New(host, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		host:   strings.TrimRight(host, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has workspace credentials.
func (c *Client) Configured() bool {
	return c != nil && c.host != "" && c.token != ""
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

var errNotFound = fmt.Errorf("databricks resource not found")

// ServingEndpoint is one entry from the serving endpoints listing.
type ServingEndpoint struct {
	Name  string `json:"name"`
	State struct {
		Ready string `json:"ready"`
	} `json:"state"`
	Task string `json:"task,omitempty"`
}

// ListEndpoints returns the workspace serving endpoints sorted with
// databricks-hosted foundation models ("databricks-" prefix) first,
// alphabetically within each group.
func (c *Client) ListEndpoints(ctx context.Context) ([]ServingEndpoint, error) {
	var out struct {
		Endpoints []ServingEndpoint `json:"endpoints"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/2.0/serving-endpoints", nil, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out.Endpoints, func(i, j int) bool {
		pi := strings.HasPrefix(out.Endpoints[i].Name, "databricks-")
		pj := strings.HasPrefix(out.Endpoints[j].Name, "databricks-")
		if pi != pj {
			return pi
		}
		return out.Endpoints[i].Name < out.Endpoints[j].Name
	})
	return out.Endpoints, nil
}

// ListEndpointNames returns the sorted endpoint names only.
func (c *Client) ListEndpointNames(ctx context.Context) ([]string, error) {
	endpoints, err := c.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		names = append(names, e.Name)
	}
	return names, nil
}

// CurrentUser returns the workspace user name for the configured token.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var out struct {
		UserName string `json:"userName"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/2.0/preview/scim/v2/Me", nil, &out); err != nil {
		return "", err
	}
	return out.UserName, nil
}

// ExperimentExists reports whether an MLflow experiment with the given
// name exists in the workspace.
func (c *Client) ExperimentExists(ctx context.Context, name string) (bool, error) {
	path := "/api/2.0/mlflow/experiments/get-by-name?experiment_name=" + url.QueryEscape(name)
	err := c.do(ctx, http.MethodGet, path, nil, &struct{}{})
	if err == errNotFound {
		return false, nil
	}
	if err != nil {
		// The MLflow API reports a missing experiment as a 4xx with a
		// RESOURCE_DOES_NOT_EXIST code rather than a bare 404.
		if strings.Contains(err.Error(), "RESOURCE_DOES_NOT_EXIST") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureExperiment returns the id of the named experiment, creating it
// when absent.
func (c *Client) EnsureExperiment(ctx context.Context, name string) (string, error) {
	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	path := "/api/2.0/mlflow/experiments/get-by-name?experiment_name=" + url.QueryEscape(name)
	err := c.do(ctx, http.MethodGet, path, nil, &got)
	if err == nil {
		return got.Experiment.ExperimentID, nil
	}
	if err != errNotFound && !strings.Contains(err.Error(), "RESOURCE_DOES_NOT_EXIST") {
		return "", err
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/2.0/mlflow/experiments/create",
		map[string]string{"name": name}, &created); err != nil {
		return "", fmt.Errorf("create experiment %q: %w", name, err)
	}
	return created.ExperimentID, nil
}

// ChatMessage is one message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams are the sampling parameters for a completion call.
type ChatParams struct {
	Temperature float64
	MaxTokens   int
}

// ChatResult is the normalized output of a completion call.
type ChatResult struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Usage reports token accounting as returned by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chat invokes a serving endpoint with an OpenAI-style chat payload and
// normalizes the response. Foundation model endpoints answer in the
// choices format; some custom pyfunc endpoints answer with predictions.
func (c *Client) Chat(ctx context.Context, endpoint string, messages []ChatMessage, params ChatParams) (*ChatResult, error) {
	body := map[string]interface{}{
		"messages":    messages,
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
	}
	var raw struct {
		Model   string `json:"model"`
		Choices []struct {
			Message ChatMessage `json:"message"`
			Text    string      `json:"text"`
		} `json:"choices"`
		Predictions []string `json:"predictions"`
		Usage       *Usage   `json:"usage"`
	}
	path := "/serving-endpoints/" + url.PathEscape(endpoint) + "/invocations"
	if err := c.do(ctx, http.MethodPost, path, body, &raw); err != nil {
		return nil, err
	}

	result := &ChatResult{Model: raw.Model, Usage: raw.Usage}
	switch {
	case len(raw.Choices) > 0 && raw.Choices[0].Message.Content != "":
		result.Content = raw.Choices[0].Message.Content
	case len(raw.Choices) > 0:
		result.Content = raw.Choices[0].Text
	case len(raw.Predictions) > 0:
		result.Content = raw.Predictions[0]
	default:
		return nil, fmt.Errorf("endpoint %q returned no completion", endpoint)
	}
	return result, nil
}
