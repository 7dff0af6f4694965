package judge

import (
	"context"
	"strings"
	"time"
)

// Status codes reported when a run never produced a verdict from the execution backend.
const (
	StatusTransportError = -1
	StatusTimeout        = -2
	StatusCanceled       = -3
)

// Judge0 status ids the client relies on.
const (
	Judge0StatusAccepted      = 3
	Judge0StatusInternalError = 13
)

// Runner executes a program once against a single stdin payload.
//
// Implementations never return transport or backend failures to the caller; they are
// reported through Result with Accepted=false so each run stays an independent trial.
type Runner interface {
	Run(ctx context.Context, req RunRequest) Result
}

// RunRequest describes one execution.
type RunRequest struct {
	Source   string
	Language Language
	Stdin    string
	Timeout  time.Duration
}

// Result is the normalized outcome of one execution.
type Result struct {
	Accepted   bool
	Output     string
	ErrorText  string
	StatusCode int
	StatusText string
	Duration   time.Duration
}

// NormalizeOutput trims surrounding whitespace and unifies line endings.
func NormalizeOutput(output string) string {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	return strings.TrimSpace(output)
}

func failure(status int, text string, err error) Result {
	message := text
	if err != nil {
		message = text + ": " + err.Error()
	}
	return Result{
		Accepted:   false,
		ErrorText:  message,
		StatusCode: status,
		StatusText: text,
	}
}

func contextFailure(ctx context.Context, err error) Result {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return failure(StatusTimeout, "execution timed out", nil)
	case context.Canceled:
		return failure(StatusCanceled, "execution canceled", nil)
	}
	return failure(StatusTransportError, "execution service unreachable", err)
}
