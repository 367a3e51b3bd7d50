package exec

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status is the execution service's verdict for a submission.
type Status int

// Judge0 status ids.
const (
	StatusInQueue      Status = 1
	StatusProcessing   Status = 2
	StatusAccepted     Status = 3
	StatusCompileError Status = 6
)

// Terminal reports whether the submission has finished, in whatever
// state. Anything past Processing is terminal, including verdicts this
// package has no name for (wrong answer, time limit, runtime errors).
func (s Status) Terminal() bool {
	return s != StatusInQueue && s != StatusProcessing
}

func (s Status) String() string {
	switch s {
	case StatusInQueue:
		return "in_queue"
	case StatusProcessing:
		return "processing"
	case StatusAccepted:
		return "accepted"
	case StatusCompileError:
		return "compile_error"
	}
	return "other"
}

// Submission is one execution request.
type Submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

// Result is the state of a submission at one poll.
type Result struct {
	Status        Status
	Description   string
	Stdout        string
	Stderr        string
	CompileOutput string
}

// Output flattens the result into the single string a caller would
// show: stdout on success, the compiler's complaint on a compile
// error, stderr (or whatever is available) otherwise.
func (r Result) Output() string {
	switch {
	case r.Status == StatusAccepted:
		if r.Stdout == "" {
			return "No output"
		}
		return r.Stdout
	case r.Status == StatusCompileError:
		return r.CompileOutput
	case r.Stderr != "":
		return r.Stderr
	case r.CompileOutput != "":
		return r.CompileOutput
	}
	return "Unknown error"
}

// Runner is an asynchronous execution backend.
type Runner interface {
	// Submit queues a submission and returns its token.
	Submit(ctx context.Context, sub Submission) (string, error)

	// Result fetches the submission's current state.
	Result(ctx context.Context, token string) (Result, error)
}

// Polling policy defaults.
const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 1500 * time.Millisecond
)

// ErrNotFinished is returned when a submission is still queued or
// running after the poll budget is spent.
var ErrNotFinished = errors.New("exec: submission did not finish in time")

// Poller drives a Runner to a terminal result. Zero fields take the
// defaults.
type Poller struct {
	Runner   Runner
	Attempts int
	Interval time.Duration
}

// Run submits and polls until the result is terminal, the attempts run
// out, or the context ends. On ErrNotFinished the last observed result
// is returned alongside the error.
func (p Poller) Run(ctx context.Context, sub Submission) (Result, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	token, err := p.Runner.Submit(ctx, sub)
	if err != nil {
		return Result{}, err
	}

	var last Result
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)), ctx)
	err = backoff.Retry(func() error {
		res, err := p.Runner.Result(ctx, token)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = res
		if !res.Status.Terminal() {
			return ErrNotFinished
		}
		return nil
	}, policy)
	if err != nil {
		return last, err
	}
	return last, nil
}
