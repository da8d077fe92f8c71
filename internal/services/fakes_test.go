package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
	"shipment-orchestrator/internal/repository"
)

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// memOrderRepo applies the same guards as the SQL repository
type memOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	saveErr error
}

func newMemOrderRepo(orders ...*models.Order) *memOrderRepo {
	r := &memOrderRepo{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func copyOrder(o *models.Order) *models.Order {
	out := *o
	out.Items = append([]models.OrderItem(nil), o.Items...)
	return &out
}

func (r *memOrderRepo) get(id string) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyOrder(r.orders[id])
}

func (r *memOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	return copyOrder(o), nil
}

func (r *memOrderRepo) GetByAWB(ctx context.Context, awbCode string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.AWBCode != nil && *o.AWBCode == awbCode {
			return copyOrder(o), nil
		}
	}
	return nil, apperrors.NewNotFoundError("shipment", awbCode)
}

func (r *memOrderRepo) ListActiveShipments(ctx context.Context, limit int) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, o := range r.orders {
		if !o.HasAWB() || o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusDelivered {
			continue
		}
		if o.CurrentCourierStatus().IsTerminal() {
			continue
		}
		out = append(out, copyOrder(o))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOrderRepo) SaveCourierOrder(ctx context.Context, orderID string, link repository.CourierOrderLink) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return false, r.saveErr
	}
	o := r.orders[orderID]
	if o == nil || o.CourierOrderID != nil {
		return false, nil
	}
	o.CourierOrderID = strPtr(link.CourierOrderID)
	o.CourierStatus = strPtr(link.CourierStatus)
	if link.CourierShipmentID != "" {
		o.CourierShipmentID = strPtr(link.CourierShipmentID)
		if link.AWBCode != "" {
			o.AWBCode = strPtr(link.AWBCode)
			if link.CourierID > 0 {
				o.CourierID = intPtr(link.CourierID)
			}
			if link.CourierName != "" {
				o.CourierName = strPtr(link.CourierName)
			}
		}
	}
	return true, nil
}

func (r *memOrderRepo) FillShipmentID(ctx context.Context, orderID, shipmentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || o.CourierOrderID == nil || o.CourierShipmentID != nil {
		return false, nil
	}
	o.CourierShipmentID = strPtr(shipmentID)
	return true, nil
}

func (r *memOrderRepo) FillAWB(ctx context.Context, orderID string, a repository.AWBAssignment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || o.AWBCode != nil || o.CourierShipmentID == nil {
		return false, nil
	}
	o.AWBCode = strPtr(a.AWBCode)
	o.CourierStatus = strPtr(string(models.CourierStatusAWBAssigned))
	if a.CourierName != "" {
		o.CourierName = strPtr(a.CourierName)
	}
	if a.CourierID > 0 {
		o.CourierID = intPtr(a.CourierID)
	}
	return true, nil
}

func (r *memOrderRepo) AssignAWB(ctx context.Context, orderID, shipmentID string, a repository.AWBAssignment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || o.AWBCode != nil || o.CourierShipmentID == nil || *o.CourierShipmentID != shipmentID {
		return false, nil
	}
	o.AWBCode = strPtr(a.AWBCode)
	o.CourierName = strPtr(a.CourierName)
	o.CourierStatus = strPtr(string(models.CourierStatusAWBAssigned))
	if a.CourierID > 0 {
		o.CourierID = intPtr(a.CourierID)
	}
	return true, nil
}

func (r *memOrderRepo) SavePickup(ctx context.Context, orderID, awbCode string, scheduled *time.Time, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || o.AWBCode == nil || *o.AWBCode != awbCode {
		return false, nil
	}
	o.PickupScheduledDate = scheduled
	o.CourierStatus = strPtr(string(models.CourierStatusPickupScheduled))
	if token != "" {
		o.PickupToken = strPtr(token)
	}
	return true, nil
}

func (r *memOrderRepo) SaveLabel(ctx context.Context, orderID, labelURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o := r.orders[orderID]; o != nil {
		o.LabelURL = strPtr(labelURL)
	}
	return nil
}

func (r *memOrderRepo) UpdateTracking(ctx context.Context, orderID string, u repository.TrackingUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil {
		return nil
	}
	if u.CourierStatus != nil {
		o.CourierStatus = strPtr(*u.CourierStatus)
	}
	if u.TrackingURL != nil {
		o.TrackingURL = strPtr(*u.TrackingURL)
	}
	if u.EstimatedDeliveryDate != nil {
		etd := *u.EstimatedDeliveryDate
		o.EstimatedDeliveryDate = &etd
	}
	if u.CourierName != nil {
		o.CourierName = strPtr(*u.CourierName)
	}
	return nil
}

func (r *memOrderRepo) TransitionStatus(ctx context.Context, orderID string, to models.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || !o.Status.CanAdvanceTo(to) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *memOrderRepo) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || o.CourierOrderID == nil || o.CurrentCourierStatus() == models.CourierStatusCancelled {
		return false, nil
	}
	o.Status = models.OrderStatusCancelled
	o.CourierStatus = strPtr(string(models.CourierStatusCancelled))
	return true, nil
}

func (r *memOrderRepo) ResetShipment(ctx context.Context, orderID, awbCode string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o == nil || o.AWBCode == nil || *o.AWBCode != awbCode {
		return false, nil
	}
	if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusDelivered {
		return false, nil
	}
	o.AWBCode = nil
	o.CourierID = nil
	o.CourierName = nil
	o.PickupToken = nil
	o.PickupScheduledDate = nil
	o.LabelURL = nil
	o.TrackingURL = nil
	o.EstimatedDeliveryDate = nil
	o.CourierStatus = strPtr(string(models.CourierStatusNew))
	o.Status = models.OrderStatusConfirmed
	return true, nil
}

type memSettingsRepo struct {
	mu       sync.Mutex
	settings *models.ShipmentSettings
	saves    int
	clears   int
	// runs before Save applies, to interleave a concurrent writer
	beforeSave func()
}

func (r *memSettingsRepo) Get(ctx context.Context) (*models.ShipmentSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil, apperrors.NewNotFoundError("shipment settings", "active")
	}
	out := *r.settings
	return &out, nil
}

func (r *memSettingsRepo) GetOrCreate(ctx context.Context) (*models.ShipmentSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		r.settings = &models.ShipmentSettings{ID: 1}
	}
	out := *r.settings
	return &out, nil
}

func (r *memSettingsRepo) Save(ctx context.Context, settings *models.ShipmentSettings) error {
	if r.beforeSave != nil {
		r.beforeSave()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := *settings
	if r.settings != nil {
		out.AuthToken = r.settings.AuthToken
		out.TokenExpiresAt = r.settings.TokenExpiresAt
	} else {
		out.AuthToken = ""
		out.TokenExpiresAt = nil
	}
	r.settings = &out
	r.saves++
	return nil
}

func (r *memSettingsRepo) SaveToken(ctx context.Context, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		r.settings = &models.ShipmentSettings{ID: 1}
	}
	r.settings.AuthToken = token
	r.settings.TokenExpiresAt = &expiresAt
	return nil
}

func (r *memSettingsRepo) ClearToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	if r.settings != nil && (token == "" || r.settings.AuthToken == token) {
		r.settings.AuthToken = ""
		r.settings.TokenExpiresAt = nil
	}
	return nil
}

type staticSettings struct {
	settings *models.ShipmentSettings
	err      error
}

func (s staticSettings) Operational(ctx context.Context) (*models.ShipmentSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.settings
	return &out, nil
}

func enabledSettings() *models.ShipmentSettings {
	return &models.ShipmentSettings{
		ID:             1,
		Enabled:        true,
		PickupLocation: models.PickupAddress{Name: "Warehouse", Pincode: "110001"},
		DefaultLength:  10,
		DefaultBreadth: 10,
		DefaultHeight:  10,
		DefaultWeight:  0.5,
	}
}

// fakeGateway records calls and returns canned results
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	serviceability *carriers.ServiceabilityResult
	serviceErr     error
	locations      []carriers.PickupLocation
	created        *carriers.CreateOrderResult
	createErr      error
	lastPayload    *carriers.CreateOrderPayload
	awbCodes       []string
	awbErr         error
	awbCourierIDs  []*int
	pickup         *carriers.PickupResult
	pickupErr      error
	labelURL       string
	cancelErr      error
	tracking       *carriers.TrackingResult
	trackErr       error
	details        *carriers.OrderDetails
	detailsErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls: make(map[string]int),
		locations: []carriers.PickupLocation{
			{ID: 1, PickupCode: "Secondary", PinCode: "400001"},
			{ID: 2, PickupCode: "Primary", PinCode: "110001", IsPrimaryLocation: 1},
		},
		created:  &carriers.CreateOrderResult{CourierOrderID: "SR-1", CourierShipmentID: "SH-1", Status: "NEW"},
		awbCodes: []string{"AWB-1", "AWB-2", "AWB-3"},
		pickup:   &carriers.PickupResult{PickupToken: "PK-1", Status: "scheduled"},
		labelURL: "https://labels.example.com/SH-1.pdf",
	}
}

func (g *fakeGateway) record(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) CheckServiceability(ctx context.Context, req carriers.ServiceabilityRequest) (*carriers.ServiceabilityResult, error) {
	g.record("serviceability")
	if g.serviceErr != nil {
		return nil, g.serviceErr
	}
	if g.serviceability == nil {
		return &carriers.ServiceabilityResult{Available: false, Couriers: []models.CourierQuote{}}, nil
	}
	return g.serviceability, nil
}

func (g *fakeGateway) CreateOrder(ctx context.Context, payload *carriers.CreateOrderPayload) (*carriers.CreateOrderResult, error) {
	g.record("create")
	g.mu.Lock()
	g.lastPayload = payload
	g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	out := *g.created
	return &out, nil
}

func (g *fakeGateway) GenerateAWB(ctx context.Context, shipmentID string, courierID *int) (*carriers.AWBResult, error) {
	g.record("awb")
	g.mu.Lock()
	defer g.mu.Unlock()
	g.awbCourierIDs = append(g.awbCourierIDs, courierID)
	if g.awbErr != nil {
		return nil, g.awbErr
	}
	code := g.awbCodes[0]
	g.awbCodes = g.awbCodes[1:]
	id := 7
	if courierID != nil {
		id = *courierID
	}
	return &carriers.AWBResult{AWBCode: code, CourierID: id, CourierName: "Delhivery Surface"}, nil
}

func (g *fakeGateway) SchedulePickup(ctx context.Context, shipmentIDs []string) (*carriers.PickupResult, error) {
	g.record("pickup")
	if g.pickupErr != nil {
		return nil, g.pickupErr
	}
	out := *g.pickup
	return &out, nil
}

func (g *fakeGateway) GenerateLabel(ctx context.Context, shipmentIDs []string) (string, error) {
	g.record("label")
	return g.labelURL, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, courierOrderIDs []string) error {
	g.record("cancel_order")
	return g.cancelErr
}

func (g *fakeGateway) CancelShipment(ctx context.Context, awbCodes []string) error {
	g.record("cancel_shipment")
	return g.cancelErr
}

func (g *fakeGateway) TrackByAWB(ctx context.Context, awbCode string) (*carriers.TrackingResult, error) {
	g.record("track")
	if g.trackErr != nil {
		return nil, g.trackErr
	}
	return g.tracking, nil
}

func (g *fakeGateway) GetOrderDetails(ctx context.Context, courierOrderID string) (*carriers.OrderDetails, error) {
	g.record("details")
	if g.detailsErr != nil {
		return nil, g.detailsErr
	}
	return g.details, nil
}

func (g *fakeGateway) GetPickupLocations(ctx context.Context) ([]carriers.PickupLocation, error) {
	g.record("locations")
	return g.locations, nil
}

func (g *fakeGateway) TestConnection(ctx context.Context) error {
	g.record("test")
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishShipmentEvent(ctx context.Context, eventType string, order *models.Order, metadata map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}

func newTestOrder(id string) *models.Order {
	return &models.Order{
		ID:              id,
		UserID:          "user-" + id,
		Status:          models.OrderStatusPending,
		PaymentMethod:   "cod",
		Total:           1000,
		ShippingCharges: 100,
		ShippingAddress: models.ShippingAddress{
			Name:         "Asha Verma",
			AddressLine1: "12 MG Road",
			City:         "Bengaluru",
			State:        "Karnataka",
			Pincode:      "560001",
			Phone:        "+91 98765 43210",
			Email:        "asha@example.com",
		},
		Items: []models.OrderItem{
			{ID: 1, OrderID: id, ProductID: "p-1", Name: "Kettle", SKU: "KET-1", Quantity: 1, Price: 900},
		},
	}
}

// linkedOrder returns an order with an aggregator order and shipment linked
func linkedOrder(id string) *models.Order {
	o := newTestOrder(id)
	o.Status = models.OrderStatusConfirmed
	o.CourierOrderID = strPtr("SR-" + id)
	o.CourierShipmentID = strPtr("SH-" + id)
	o.CourierStatus = strPtr(string(models.CourierStatusNew))
	return o
}

func withAWB(o *models.Order, awb string, courierStatus models.CourierStatus) *models.Order {
	o.AWBCode = strPtr(awb)
	o.CourierName = strPtr("Delhivery Surface")
	o.CourierStatus = strPtr(string(courierStatus))
	if o.Status == models.OrderStatusConfirmed {
		o.Status = models.OrderStatusProcessing
	}
	return o
}

type lifecycleFixture struct {
	orders    *memOrderRepo
	gateway   *fakeGateway
	notifier  *recordingNotifier
	publisher *recordingPublisher
	settings  *models.ShipmentSettings
	service   *LifecycleService
}

func newLifecycleFixture(settings *models.ShipmentSettings, orders ...*models.Order) *lifecycleFixture {
	f := &lifecycleFixture{
		orders:    newMemOrderRepo(orders...),
		gateway:   newFakeGateway(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		settings:  settings,
	}
	logger := discardLogger()
	reconciler := NewStatusReconciler(f.orders, nil, f.notifier, f.publisher, nil, logger)
	f.service = NewLifecycleService(f.orders, staticSettings{settings: settings}, f.gateway, reconciler, f.notifier, f.publisher, logger)
	f.service.now = func() time.Time { return time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC) }
	return f
}
