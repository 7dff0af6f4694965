package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// Judge0Config groups the settings of a Judge0 compatible execution service.
type Judge0Config struct {
	BaseURL           string
	AuthToken         string
	RapidAPIKey       string
	RapidAPIHost      string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            zerolog.Logger
}

// Judge0Client runs code through the blocking submissions endpoint of a Judge0 service.
type Judge0Client struct {
	baseURL string
	cfg     Judge0Config
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  zerolog.Logger
}

type judge0Request struct {
	SourceCode   string  `json:"source_code"`
	LanguageID   int     `json:"language_id"`
	Stdin        string  `json:"stdin"`
	CPUTimeLimit float64 `json:"cpu_time_limit,omitempty"`
}

type judge0Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type judge0Response struct {
	Stdout        *string      `json:"stdout"`
	Stderr        *string      `json:"stderr"`
	CompileOutput *string      `json:"compile_output"`
	Message       *string      `json:"message"`
	Status        judge0Status `json:"status"`
	Time          *string      `json:"time"`
}

type judge0Language struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NewJudge0Client constructs a client for the given service.
func NewJudge0Client(cfg Judge0Config) (*Judge0Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("judge0 base url must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Judge0Client{
		baseURL: baseURL,
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		tracer:  otel.Tracer("github.com/vasiprashanti/techlearn-api/pkg/judge"),
		logger:  cfg.Logger.With().Str("component", "judge0_client").Logger(),
	}, nil
}

// Run submits the program and waits for the verdict.
func (c *Judge0Client) Run(parent context.Context, req RunRequest) Result {
	ctx, span := c.tracer.Start(parent, "judge0.run", trace.WithAttributes(
		attribute.String("judge.language", req.Language.String()),
	))
	defer span.End()

	start := time.Now()
	result := c.throttledRun(ctx, req)
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	observeRun("judge0", req.Language, result)

	if !result.Accepted {
		span.SetStatus(codes.Error, result.StatusText)
	}
	span.SetAttributes(attribute.Int("judge.status_id", result.StatusCode))
	return result
}

// throttledRun waits for a limiter slot before starting the per-test timeout, so
// queueing behind other calls never eats into a test's time limit.
func (c *Judge0Client) throttledRun(ctx context.Context, req RunRequest) Result {
	if !req.Language.Valid() {
		return failure(StatusTransportError, "unsupported language", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return contextFailure(ctx, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.run(ctx, req)
}

func (c *Judge0Client) run(ctx context.Context, req RunRequest) Result {

	payload := judge0Request{
		SourceCode: req.Source,
		LanguageID: req.Language.Judge0ID(),
		Stdin:      req.Stdin,
	}
	if req.Timeout > 0 {
		payload.CPUTimeLimit = req.Timeout.Seconds()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(StatusTransportError, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions?base64_encoded=false&wait=true", bytes.NewReader(body))
	if err != nil {
		return failure(StatusTransportError, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("language", req.Language.String()).Msg("execution service call failed")
		return contextFailure(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().Int("http_status", resp.StatusCode).Msg("execution service returned non-success status")
		var detail error
		if text := strings.TrimSpace(string(snippet)); text != "" {
			detail = errors.New(text)
		}
		return failure(StatusTransportError, fmt.Sprintf("execution service returned HTTP %d", resp.StatusCode), detail)
	}

	var decoded judge0Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return failure(StatusTransportError, "decode response", err)
	}

	return decoded.toResult()
}

func (r judge0Response) toResult() Result {
	result := Result{
		Accepted:   r.Status.ID == Judge0StatusAccepted,
		Output:     NormalizeOutput(deref(r.Stdout)),
		StatusCode: r.Status.ID,
		StatusText: r.Status.Description,
	}

	if r.Time != nil {
		if seconds, err := strconv.ParseFloat(*r.Time, 64); err == nil {
			result.Duration = time.Duration(math.Round(seconds*1e6)) * time.Microsecond
		}
	}

	if !result.Accepted {
		result.ErrorText = firstNonEmpty(deref(r.CompileOutput), deref(r.Stderr), deref(r.Message), r.Status.Description)
	}
	return result
}

// VerifyLanguages checks that every catalog language is offered by the service.
func (c *Judge0Client) VerifyLanguages(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/languages", nil)
	if err != nil {
		return fmt.Errorf("build languages request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fetch judge languages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch judge languages: HTTP %d", resp.StatusCode)
	}

	var offered []judge0Language
	if err := json.NewDecoder(resp.Body).Decode(&offered); err != nil {
		return fmt.Errorf("decode judge languages: %w", err)
	}

	available := make(map[int]struct{}, len(offered))
	for _, language := range offered {
		available[language.ID] = struct{}{}
	}

	var missing []string
	for _, language := range SupportedLanguages() {
		if _, ok := available[language.Judge0ID()]; !ok {
			missing = append(missing, fmt.Sprintf("%s(%d)", language, language.Judge0ID()))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("execution service does not offer: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Judge0Client) authorize(req *http.Request) {
	if c.cfg.AuthToken != "" {
		req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	}
	if c.cfg.RapidAPIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.cfg.RapidAPIKey)
		req.Header.Set("X-RapidAPI-Host", c.cfg.RapidAPIHost)
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
