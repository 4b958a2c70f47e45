package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.nhat.io/otelsql/attribute"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	ProbeTimeout        = 3 * time.Second
	SidebarStatsTimeout = 5 * time.Second
	DefaultTimeout      = 30 * time.Second
	UploadTimeout       = 60 * time.Second
)

var successCodes = []int{http.StatusOK, http.StatusCreated, http.StatusAccepted}

type Client struct {
	baseURL string
	http    *http.Client

	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tracer:  otel.Tracer("policy-console/backend"),
	}
	for _, opt := range opts {
		opt(c)
	}

	meter := otel.Meter("policy-console/backend")
	var err error
	c.requests, err = meter.Int64Counter("backend_requests_total",
		metric.WithDescription("Total number of requests sent to the policy API"))
	if err != nil {
		log.Warn().Err(err).Msg("backend request counter unavailable")
		c.requests, _ = noop.NewMeterProvider().Meter("").Int64Counter("backend_requests_total")
	}
	c.latency, err = meter.Float64Histogram("backend_request_duration_seconds",
		metric.WithDescription("Latency of requests sent to the policy API"),
		metric.WithUnit("s"))
	if err != nil {
		log.Warn().Err(err).Msg("backend latency histogram unavailable")
		c.latency, _ = noop.NewMeterProvider().Meter("").Float64Histogram("backend_request_duration_seconds")
	}

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method string
	path   string
	route  string // low-cardinality path used for spans and metrics

	body        []byte
	contentType string

	timeout time.Duration
	accept  []int
}

type response struct {
	StatusCode int
	Body       []byte
}

func (c *Client) do(ctx context.Context, req *request) (*response, error) {
	timeout := req.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "backend "+req.method+" "+req.route)
	defer span.End()

	start := time.Now()
	rsp, err := c.send(ctx, span, req)

	outcome := "ok"
	if err != nil {
		outcome = string(err.Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(
		attribute.KeyValue("http.method", req.method),
		attribute.KeyValue("http.route", req.route),
		attribute.KeyValue("outcome", outcome),
	)
	c.requests.Add(ctx, 1, attrs)
	c.latency.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		log.Debug().Str("method", req.method).Str("path", req.path).Str("kind", string(err.Kind)).
			Msg(err.Error())
		return nil, err
	}
	return rsp, nil
}

func (c *Client) send(ctx context.Context, span trace.Span, req *request) (*response, *Error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	r, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, unexpected(err)
	}
	if req.contentType != "" {
		r.Header.Set("Content-Type", req.contentType)
	}
	r.Header.Set("Accept", "application/json")

	requestId, err := uuid.NewV7()
	if err != nil {
		return nil, unexpected(err)
	}
	r.Header.Add("X-Request-ID", requestId.String())
	span.SetAttributes(
		attribute.KeyValue("api.request_id", requestId.String()),
		attribute.KeyValue("http.url", r.URL.String()),
	)

	rsp, err := c.http.Do(r)
	if err != nil {
		return nil, classify(err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}(rsp.Body)

	b, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, classify(err)
	}
	span.SetAttributes(attribute.KeyValue("http.status_code", rsp.StatusCode))

	accept := req.accept
	if accept == nil {
		accept = successCodes
	}
	if !slices.Contains(accept, rsp.StatusCode) {
		return nil, httpError(rsp.StatusCode, b)
	}

	return &response{StatusCode: rsp.StatusCode, Body: b}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, timeout time.Duration, v any) error {
	rsp, err := c.do(ctx, &request{
		method:  http.MethodGet,
		path:    path,
		route:   path,
		timeout: timeout,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rsp.Body, v); err != nil {
		return unexpected(err)
	}
	return nil
}

// Result is a decoded success body. Data is nil when the body is not JSON,
// Text always holds the raw body.
type Result struct {
	StatusCode int
	Data       any
	Text       string
}

func newResult(rsp *response) *Result {
	res := &Result{StatusCode: rsp.StatusCode, Text: string(rsp.Body)}
	var v any
	if err := json.Unmarshal(rsp.Body, &v); err == nil {
		res.Data = v
	}
	return res
}

// Field looks up a gjson path in the body, e.g. "id" or "policy.id".
func (r *Result) Field(path string) string {
	if r.Data == nil {
		return ""
	}
	return gjson.Get(r.Text, path).String()
}

// Pretty renders the body for display, indenting JSON.
func (r *Result) Pretty() string {
	if r.Data == nil {
		return r.Text
	}
	return strings.TrimSpace(string(pretty.Pretty([]byte(r.Text))))
}
