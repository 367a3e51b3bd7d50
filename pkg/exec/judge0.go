package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Judge0 speaks the Judge0 CE submission API: POST a submission for a
// token, GET the token until the status is terminal. Hosted instances
// behind RapidAPI need the key/host header pair.
type Judge0 struct {
	baseURL string
	apiKey  string
	apiHost string
	http    *http.Client
	logger  *slog.Logger
}

// Judge0Option configures the client.
type Judge0Option func(*Judge0)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Judge0Option {
	return func(j *Judge0) { j.http = c }
}

// WithRapidAPI sets the RapidAPI credential headers.
func WithRapidAPI(key, host string) Judge0Option {
	return func(j *Judge0) {
		j.apiKey = key
		j.apiHost = host
	}
}

// WithJudge0Logger sets the client logger.
func WithJudge0Logger(logger *slog.Logger) Judge0Option {
	return func(j *Judge0) { j.logger = logger }
}

// NewJudge0 creates a client for the API rooted at baseURL (the
// /submissions endpoint is appended here).
func NewJudge0(baseURL string, opts ...Judge0Option) *Judge0 {
	j := &Judge0{
		baseURL: baseURL,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	j.logger = j.logger.With("component", "judge0")
	return j
}

// Submit implements Runner.
func (j *Judge0) Submit(ctx context.Context, sub Submission) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("exec: encode submission: %w", err)
	}

	u := j.baseURL + "/submissions?" + url.Values{
		"base64_encoded": {"false"},
		"wait":           {"false"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Token string `json:"token"`
	}
	if err := j.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("exec: no submission token received")
	}

	j.logger.Debug("submission queued", "token", resp.Token, "language", sub.LanguageID)
	return resp.Token, nil
}

// Result implements Runner.
func (j *Judge0) Result(ctx context.Context, token string) (Result, error) {
	u := j.baseURL + "/submissions/" + url.PathEscape(token) + "?" + url.Values{
		"base64_encoded": {"false"},
		"fields":         {"status,stdout,stderr,compile_output"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, err
	}

	// Unset fields come back as JSON null, which decodes as the zero
	// string.
	var resp struct {
		Status struct {
			ID          int    `json:"id"`
			Description string `json:"description"`
		} `json:"status"`
		Stdout        string `json:"stdout"`
		Stderr        string `json:"stderr"`
		CompileOutput string `json:"compile_output"`
	}
	if err := j.do(req, &resp); err != nil {
		return Result{}, err
	}

	return Result{
		Status:        Status(resp.Status.ID),
		Description:   resp.Status.Description,
		Stdout:        resp.Stdout,
		Stderr:        resp.Stderr,
		CompileOutput: resp.CompileOutput,
	}, nil
}

func (j *Judge0) do(req *http.Request, out any) error {
	if j.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", j.apiKey)
		req.Header.Set("X-RapidAPI-Host", j.apiHost)
	}

	resp, err := j.http.Do(req)
	if err != nil {
		return fmt.Errorf("exec: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("exec: %s %s: %s: %s",
			req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("exec: decode response: %w", err)
	}
	return nil
}
