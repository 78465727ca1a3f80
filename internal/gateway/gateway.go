package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gateway talks to one external payment provider.
type Gateway interface {
	Method() domain.PaymentMethod
	OrderPrefix() string
	BuildChargeRequest(req ChargeRequest) SignedRequest
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	VerifyCallback(payload map[string]any) (*Callback, error)
}

type ChargeRequest struct {
	OrderID   string
	Amount    int64
	OrderInfo string
	ReturnURL string
	IPNURL    string
	Lang      string
}

// SignedRequest is the provider wire payload. Fields are the signed parameters; Signature covers Canonical(Fields).
type SignedRequest struct {
	Endpoint  string
	Fields    map[string]string
	Signature string
}

// Body is the JSON document posted to the provider.
func (r SignedRequest) Body() map[string]any {
	body := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		body[k] = v
	}
	if amount, err := strconv.ParseInt(r.Fields["amount"], 10, 64); err == nil {
		body["amount"] = amount
	}
	body["signature"] = r.Signature
	return body
}

type ChargeResult struct {
	PayURL     string `json:"payUrl"`
	ShortLink  string `json:"shortLink"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// Callback is a verified gateway notification. Raw keeps every field for audit.
type Callback struct {
	OrderID        string
	ResultCode     int
	TransactionID  string
	Amount         int64
	ResponseTimeMs int64
	Message        string
	Raw            map[string]string
}

type Provider struct {
	method  domain.PaymentMethod
	cfg     config.ProviderConfig
	client  *http.Client
	tracer  trace.Tracer
	timeout time.Duration
	latency *prometheus.HistogramVec
}

type Option func(*Provider)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

func WithLatency(latency *prometheus.HistogramVec) Option {
	return func(p *Provider) {
		p.latency = latency
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Provider) {
		p.tracer = tracer
	}
}

func NewProvider(method domain.PaymentMethod, cfg config.ProviderConfig, opts ...Option) *Provider {
	p := &Provider{
		method: method,
		cfg:    cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		tracer:  otel.Tracer("skybooking/gateway"),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.OrderPrefix == "" {
		p.cfg.OrderPrefix = string(method)
	}
	return p
}

func (p *Provider) Method() domain.PaymentMethod { return p.method }

func (p *Provider) OrderPrefix() string { return p.cfg.OrderPrefix }

// SignFields signs fields the way the provider does. accessKey is part of the signed set when configured.
func (p *Provider) SignFields(fields map[string]string) string {
	return Sign(p.cfg.SecretKey, canonicalWithKey(fields, p.cfg.AccessKey))
}

func (p *Provider) BuildChargeRequest(req ChargeRequest) SignedRequest {
	lang := req.Lang
	if lang == "" {
		lang = "vi"
	}
	fields := map[string]string{
		"partnerCode": p.cfg.PartnerCode,
		"requestId":   req.OrderID,
		"amount":      strconv.FormatInt(req.Amount, 10),
		"orderId":     req.OrderID,
		"orderInfo":   req.OrderInfo,
		"redirectUrl": req.ReturnURL,
		"ipnUrl":      req.IPNURL,
		"requestType": p.cfg.RequestType,
		"extraData":   "",
		"lang":        lang,
	}
	if p.cfg.AccessKey != "" {
		fields["accessKey"] = p.cfg.AccessKey
	}
	return SignedRequest{
		Endpoint:  p.cfg.Endpoint,
		Fields:    fields,
		Signature: Sign(p.cfg.SecretKey, Canonical(fields)),
	}
}

// Charge posts the signed request and returns the redirect target. Any transport failure,
// non-2xx status, malformed body or non-zero provider resultCode is an ErrUpstream.
func (p *Provider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	signed := p.BuildChargeRequest(req)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "gateway.charge", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(p.method)),
		attribute.String("payment.order_id", req.OrderID),
		attribute.String("http.url", signed.Endpoint),
	)

	fail := func(err error) (*ChargeResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %s charge %s: %v", domain.ErrUpstream, p.method, req.OrderID, err)
	}

	body, err := json.Marshal(signed.Body())
	if err != nil {
		return fail(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, signed.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if p.latency != nil {
		p.latency.WithLabelValues(string(p.method)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fail(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("provider returned status %s", resp.Status))
	}

	var result ChargeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}
	span.SetAttributes(attribute.Int("payment.result_code", result.ResultCode))
	if result.ResultCode != 0 {
		return fail(fmt.Errorf("provider rejected charge: resultCode=%d message=%q", result.ResultCode, result.Message))
	}
	if result.PayURL == "" && result.ShortLink == "" {
		return fail(fmt.Errorf("provider response has no payUrl"))
	}
	return &result, nil
}

// VerifyCallback recomputes the signature over every field except "signature".
// A mismatch is ErrInvalidSignature and nothing else about the payload is reported.
func (p *Provider) VerifyCallback(payload map[string]any) (*Callback, error) {
	fields := make(map[string]string, len(payload))
	var signature string
	for k, v := range payload {
		s, err := stringify(v)
		if err != nil {
			return nil, domain.ErrInvalidSignature
		}
		if k == "signature" {
			signature = s
			continue
		}
		fields[k] = s
	}
	if signature == "" || !signatureMatches(p.cfg.SecretKey, canonicalWithKey(fields, p.cfg.AccessKey), signature) {
		return nil, domain.ErrInvalidSignature
	}

	cb := &Callback{
		OrderID:       fields["orderId"],
		TransactionID: fields["transId"],
		Message:       fields["message"],
		Raw:           fields,
	}
	if cb.OrderID == "" {
		return nil, domain.Validation("callback has no orderId")
	}
	var err error
	if cb.ResultCode, err = strconv.Atoi(fields["resultCode"]); err != nil {
		return nil, domain.Validation("callback resultCode is not a number")
	}
	if cb.Amount, err = strconv.ParseInt(fields["amount"], 10, 64); err != nil {
		return nil, domain.Validation("callback amount is not a number")
	}
	if rt := fields["responseTime"]; rt != "" {
		if cb.ResponseTimeMs, err = strconv.ParseInt(rt, 10, 64); err != nil {
			return nil, domain.Validation("callback responseTime is not a number")
		}
	}
	return cb, nil
}

func canonicalWithKey(fields map[string]string, accessKey string) string {
	if accessKey == "" {
		return Canonical(fields)
	}
	if _, ok := fields["accessKey"]; ok {
		return Canonical(fields)
	}
	signed := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		signed[k] = v
	}
	signed["accessKey"] = accessKey
	return Canonical(signed)
}

// stringify renders a decoded JSON scalar the way it appeared on the wire.
// Payloads must be decoded with UseNumber so large integers keep their digits.
func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", fmt.Errorf("unsupported callback value %T", v)
}

var _ Gateway = (*Provider)(nil)
