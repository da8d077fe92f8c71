package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/telemetry"
)

const (
	loginPath           = "/v1/external/auth/login"
	serviceabilityPath  = "/v1/external/courier/serviceability"
	createOrderPath     = "/v1/external/orders/create/adhoc"
	assignAWBPath       = "/v1/external/courier/assign/awb"
	generatePickupPath  = "/v1/external/courier/generate/pickup"
	generateLabelPath   = "/v1/external/courier/generate/label"
	cancelOrderPath     = "/v1/external/orders/cancel"
	cancelShipmentPath  = "/v1/external/orders/cancel/shipment/awbs"
	trackAWBPath        = "/v1/external/courier/track/awb/"
	orderDetailsPath    = "/v1/external/orders/show/"
	pickupLocationsPath = "/v1/external/settings/company/pickup"

	maxResponseBytes = 4 << 20
)

// ShiprocketClient implements Gateway against the Shiprocket API
type ShiprocketClient struct {
	baseURL      string
	httpClient   *http.Client
	writeTimeout time.Duration
	readTimeout  time.Duration
	maxRetries   int
	rateLimiter  *rate.Limiter
	tokens       *TokenCache
	metrics      *telemetry.Metrics
	logger       *logrus.Entry
}

var _ Gateway = (*ShiprocketClient)(nil)

// NewShiprocketClient creates the client and the token cache it owns
func NewShiprocketClient(cfg ClientConfig, store TokenStore, metrics *telemetry.Metrics, logger *logrus.Entry) *ShiprocketClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	c := &ShiprocketClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// Per-request deadlines come from the context.
		httpClient:   &http.Client{},
		writeTimeout: cfg.Timeout,
		readTimeout:  cfg.ReadTimeout,
		maxRetries:   cfg.MaxRetries,
		rateLimiter:  limiter,
		metrics:      metrics,
		logger:       logger.WithField("component", "shiprocket-client"),
	}
	c.tokens = NewTokenCache(store, c, metrics, logger)
	return c
}

// Tokens exposes the token cache for invalidation on credential change
func (c *ShiprocketClient) Tokens() *TokenCache {
	return c.tokens
}

// TestConnection verifies the stored credentials with a fresh login
func (c *ShiprocketClient) TestConnection(ctx context.Context) error {
	_, err := c.tokens.Refresh(ctx)
	return err
}

// Login implements Authenticator. Every failure is an AuthenticationError.
func (c *ShiprocketClient) Login(ctx context.Context, creds Credentials) (string, error) {
	start := time.Now()
	token, err := c.login(ctx, creds)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordGatewayRequest("login", status, time.Since(start).Seconds())
	return token, err
}

func (c *ShiprocketClient) login(ctx context.Context, creds Credentials) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewAuthenticationError("courier aggregator login request failed").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", apperrors.NewAuthenticationError("failed to read login response").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env errorEnvelope
		_ = json.Unmarshal(respBody, &env)
		msg := env.text()
		if msg == "" {
			msg = fmt.Sprintf("login returned status %d", resp.StatusCode)
		}
		return "", apperrors.NewAuthenticationError(msg).WithUpstreamStatus(resp.StatusCode)
	}

	var out loginResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apperrors.NewAuthenticationError("malformed login response").WithCause(err)
	}
	if err := out.validate(); err != nil {
		return "", err
	}
	return out.Token, nil
}

// CheckServiceability lists couriers for a route
func (c *ShiprocketClient) CheckServiceability(ctx context.Context, req ServiceabilityRequest) (*ServiceabilityResult, error) {
	if err := ValidatePincode(req.PickupPincode); err != nil {
		return nil, apperrors.NewValidationError("invalid pickup pincode: " + err.Error())
	}
	if err := ValidatePincode(req.DeliveryPincode); err != nil {
		return nil, apperrors.NewValidationError("invalid delivery pincode: " + err.Error())
	}
	if req.WeightKg <= 0 {
		return nil, apperrors.NewValidationError("weight must be positive")
	}

	query := url.Values{}
	query.Set("pickup_postcode", req.PickupPincode)
	query.Set("delivery_postcode", req.DeliveryPincode)
	query.Set("weight", formatDecimal(req.WeightKg))
	query.Set("cod", "0")
	if req.IsCOD {
		query.Set("cod", "1")
	}
	if req.DeclaredValue > 0 {
		query.Set("declared_value", formatDecimal(req.DeclaredValue))
	}
	if req.Length > 0 && req.Breadth > 0 && req.Height > 0 {
		query.Set("length", formatDecimal(req.Length))
		query.Set("breadth", formatDecimal(req.Breadth))
		query.Set("height", formatDecimal(req.Height))
	}

	var resp serviceabilityResponse
	err := c.call(ctx, request{op: "serviceability", method: http.MethodGet, path: serviceabilityPath, query: query}, &resp)
	if err != nil {
		// The aggregator answers an unserviceable route with a 404.
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Kind == apperrors.KindAggregator && appErr.UpstreamStatus == http.StatusNotFound {
			return &ServiceabilityResult{Available: false, Couriers: nil}, nil
		}
		return nil, err
	}

	quotes := resp.quotes()
	return &ServiceabilityResult{Available: len(quotes) > 0, Couriers: quotes}, nil
}

// CreateOrder creates an adhoc order
func (c *ShiprocketClient) CreateOrder(ctx context.Context, payload *CreateOrderPayload) (*CreateOrderResult, error) {
	if payload == nil || payload.OrderID == "" {
		return nil, apperrors.NewValidationError("order payload requires an order id")
	}
	if len(payload.OrderItems) == 0 {
		return nil, apperrors.NewValidationError("order payload requires at least one item")
	}

	var resp createOrderResponse
	if err := c.call(ctx, request{op: "create_order", method: http.MethodPost, path: createOrderPath, body: payload}, &resp); err != nil {
		return nil, err
	}

	result := &CreateOrderResult{
		CourierOrderID: string(resp.OrderID),
		Status:         resp.Status,
		AWBCode:        string(resp.AWBCode),
		CourierID:      int(resp.CourierCompanyID),
		CourierName:    resp.CourierName,
	}
	if resp.ShipmentID != "" && resp.ShipmentID != "0" {
		result.CourierShipmentID = string(resp.ShipmentID)
	}
	return result, nil
}

// GenerateAWB assigns a courier to a shipment
func (c *ShiprocketClient) GenerateAWB(ctx context.Context, shipmentID string, courierID *int) (*AWBResult, error) {
	id, err := parseAggregatorID(shipmentID, "shipment id")
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{"shipment_id": id}
	if courierID != nil && *courierID > 0 {
		body["courier_id"] = *courierID
	}

	var resp assignAWBResponse
	if err := c.call(ctx, request{op: "assign_awb", method: http.MethodPost, path: assignAWBPath, body: body}, &resp); err != nil {
		return nil, err
	}

	data := resp.Response.Data
	result := &AWBResult{
		AWBCode:     string(data.AWBCode),
		CourierID:   int(data.CourierCompanyID),
		CourierName: data.CourierName,
		AssignedAt:  parseAggregatorTime(data.AssignedDateTime.Date),
	}
	if result.CourierID == 0 && courierID != nil {
		result.CourierID = *courierID
	}
	return result, nil
}

// SchedulePickup requests a pickup for the shipments
func (c *ShiprocketClient) SchedulePickup(ctx context.Context, shipmentIDs []string) (*PickupResult, error) {
	ids, err := parseAggregatorIDs(shipmentIDs)
	if err != nil {
		return nil, err
	}

	var resp pickupResponse
	if err := c.call(ctx, request{op: "schedule_pickup", method: http.MethodPost, path: generatePickupPath,
		body: map[string]interface{}{"shipment_id": ids}}, &resp); err != nil {
		return nil, err
	}

	return &PickupResult{
		ScheduledDate: parseAggregatorTime(resp.Response.PickupScheduledDate),
		PickupToken:   string(resp.Response.PickupTokenNumber),
		Status:        resp.Response.Data,
	}, nil
}

// GenerateLabel generates the shipping label and returns its URL
func (c *ShiprocketClient) GenerateLabel(ctx context.Context, shipmentIDs []string) (string, error) {
	ids, err := parseAggregatorIDs(shipmentIDs)
	if err != nil {
		return "", err
	}

	var resp labelResponse
	if err := c.call(ctx, request{op: "generate_label", method: http.MethodPost, path: generateLabelPath,
		body: map[string]interface{}{"shipment_id": ids}}, &resp); err != nil {
		return "", err
	}
	return resp.LabelURL, nil
}

// CancelOrder cancels aggregator orders
func (c *ShiprocketClient) CancelOrder(ctx context.Context, courierOrderIDs []string) error {
	ids, err := parseAggregatorIDs(courierOrderIDs)
	if err != nil {
		return err
	}

	var resp cancelResponse
	return c.call(ctx, request{op: "cancel_order", method: http.MethodPost, path: cancelOrderPath,
		body: map[string]interface{}{"ids": ids}}, &resp)
}

// CancelShipment cancels shipments by AWB
func (c *ShiprocketClient) CancelShipment(ctx context.Context, awbCodes []string) error {
	if len(awbCodes) == 0 {
		return apperrors.NewValidationError("at least one AWB is required")
	}

	var resp cancelResponse
	return c.call(ctx, request{op: "cancel_shipment", method: http.MethodPost, path: cancelShipmentPath,
		body: map[string]interface{}{"awbs": awbCodes}}, &resp)
}

// TrackByAWB fetches live tracking for an AWB
func (c *ShiprocketClient) TrackByAWB(ctx context.Context, awbCode string) (*TrackingResult, error) {
	if strings.TrimSpace(awbCode) == "" {
		return nil, apperrors.NewValidationError("AWB is required")
	}

	var resp trackResponse
	if err := c.call(ctx, request{op: "track", method: http.MethodGet, path: trackAWBPath + url.PathEscape(awbCode)}, &resp); err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// GetOrderDetails re-reads an aggregator order
func (c *ShiprocketClient) GetOrderDetails(ctx context.Context, courierOrderID string) (*OrderDetails, error) {
	if _, err := parseAggregatorID(courierOrderID, "courier order id"); err != nil {
		return nil, err
	}

	var resp orderDetailsResponse
	if err := c.call(ctx, request{op: "order_details", method: http.MethodGet, path: orderDetailsPath + courierOrderID}, &resp); err != nil {
		return nil, err
	}
	return resp.details()
}

// GetPickupLocations lists registered pickup locations
func (c *ShiprocketClient) GetPickupLocations(ctx context.Context) ([]PickupLocation, error) {
	var resp pickupLocationsResponse
	if err := c.call(ctx, request{op: "pickup_locations", method: http.MethodGet, path: pickupLocationsPath}, &resp); err != nil {
		return nil, err
	}
	return resp.locations(), nil
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
}

func (r request) idempotent() bool {
	return r.method == http.MethodGet
}

// call issues an authenticated request and decodes the envelope into out.
// GET-style requests are retried; state-changing requests never are.
func (c *ShiprocketClient) call(ctx context.Context, req request, out responseEnvelope) error {
	start := time.Now()
	err := c.execute(ctx, req, out)

	status := "ok"
	if err != nil {
		status = strings.ToLower(string(apperrors.KindOf(err)))
		c.logger.WithFields(logrus.Fields{
			"operation":     req.op,
			"endpoint":      req.path,
			"method":        req.method,
			"payload_shape": payloadShape(req.body),
		}).WithError(err).Error("Courier aggregator request failed")
	}
	c.metrics.RecordGatewayRequest(req.op, status, time.Since(start).Seconds())
	return err
}

func (c *ShiprocketClient) execute(ctx context.Context, req request, out responseEnvelope) error {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if !req.idempotent() {
		_, err := c.attempt(ctx, req, payload, out)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		retryable, err := c.attempt(ctx, req, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return backoff.Permanent(err)
		}
		c.logger.WithFields(logrus.Fields{
			"operation": req.op,
			"attempt":   attempt,
		}).WithError(err).Warn("Retrying courier aggregator request")
		return err
	}, b)
}

// attempt performs one HTTP round trip and reports whether a failure may be retried.
func (c *ShiprocketClient) attempt(ctx context.Context, req request, payload []byte, out responseEnvelope) (bool, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return false, err
	}

	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return false, err
	}

	timeout := c.writeTimeout
	if req.idempotent() {
		timeout = c.readTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, req.method, endpoint, body)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportFailure(ctx, req, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportFailure(ctx, req, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Reject(ctx, token)
		return false, apperrors.NewAuthenticationError("courier aggregator rejected the session token").
			WithUpstreamStatus(resp.StatusCode)
	case resp.StatusCode >= 500 && !req.idempotent():
		// the aggregator may have applied the change before failing
		return false, apperrors.NewUnknownOutcomeError(req.op).
			WithCause(upstreamError(resp.StatusCode, respBody)).
			WithUpstreamStatus(resp.StatusCode)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return req.idempotent(), upstreamError(resp.StatusCode, respBody)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, upstreamError(resp.StatusCode, respBody)
	}

	if out == nil {
		return false, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return false, apperrors.NewAggregatorError("malformed response from courier aggregator").
			WithCause(err).WithUpstreamStatus(resp.StatusCode)
	}
	if err := out.validate(); err != nil {
		return false, err
	}
	return false, nil
}

// transportFailure classifies a failed round trip. A state-changing request
// that may have reached the aggregator is reported as an unknown outcome.
func (c *ShiprocketClient) transportFailure(ctx context.Context, req request, err error) (bool, error) {
	if !req.idempotent() && !isDialError(err) {
		return false, apperrors.NewUnknownOutcomeError(req.op).WithCause(err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return req.idempotent(), apperrors.NewAggregatorError("courier aggregator unreachable").WithCause(err)
}

func upstreamError(status int, body []byte) *apperrors.Error {
	var env errorEnvelope
	msg := ""
	if err := json.Unmarshal(body, &env); err == nil {
		msg = env.text()
	}
	if msg == "" {
		msg = fmt.Sprintf("courier aggregator returned status %d", status)
	}
	return apperrors.NewAggregatorError(msg).WithUpstreamStatus(status)
}

// isDialError reports a failure to connect, when nothing was sent.
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// payloadShape lists the top-level keys of a request body for logs.
// Values are never logged.
func payloadShape(body interface{}) []string {
	if body == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseAggregatorID(id, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid %s %q", name, id))
	}
	return n, nil
}

func parseAggregatorIDs(ids []string) ([]int, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("at least one id is required")
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		n, err := parseAggregatorID(id, "id")
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
