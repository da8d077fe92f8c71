package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"shipment-orchestrator/internal/models"
)

// StatusMapping maps one aggregator status code to the local vocabulary.
// An empty OrderStatus leaves the order status untouched.
type StatusMapping struct {
	Code        int                `yaml:"code" json:"code"`
	Label       string             `yaml:"label" json:"label"`
	OrderStatus models.OrderStatus `yaml:"orderStatus,omitempty" json:"orderStatus,omitempty"`
}

// StatusTable is the data-driven code table used by every ingestion path
type StatusTable struct {
	byCode  map[int]StatusMapping
	byLabel map[string]StatusMapping
}

var defaultStatusMappings = []StatusMapping{
	{Code: 1, Label: "AWB_ASSIGNED"},
	{Code: 2, Label: "LABEL_GENERATED"},
	{Code: 3, Label: "PICKUP_SCHEDULED"},
	{Code: 4, Label: "PICKUP_QUEUED"},
	{Code: 5, Label: "MANIFEST_GENERATED"},
	{Code: 6, Label: "SHIPPED", OrderStatus: models.OrderStatusShipped},
	{Code: 7, Label: "DELIVERED", OrderStatus: models.OrderStatusDelivered},
	{Code: 8, Label: "CANCELLED", OrderStatus: models.OrderStatusCancelled},
	{Code: 9, Label: "RTO_INITIATED"},
	{Code: 10, Label: "RTO_DELIVERED"},
	{Code: 11, Label: "PENDING"},
	{Code: 12, Label: "LOST"},
	{Code: 13, Label: "PICKUP_ERROR"},
	{Code: 14, Label: "RTO_ACKNOWLEDGED"},
	{Code: 15, Label: "PICKUP_RESCHEDULED"},
	{Code: 16, Label: "CANCELLATION_REQUESTED"},
	{Code: 17, Label: "OUT_FOR_DELIVERY", OrderStatus: models.OrderStatusShipped},
	{Code: 18, Label: "IN_TRANSIT", OrderStatus: models.OrderStatusShipped},
	{Code: 19, Label: "OUT_FOR_PICKUP"},
	{Code: 20, Label: "PICKUP_EXCEPTION"},
	{Code: 21, Label: "UNDELIVERED"},
	{Code: 22, Label: "DELAYED"},
	{Code: 23, Label: "PARTIAL_DELIVERED"},
	{Code: 24, Label: "DESTROYED"},
	{Code: 25, Label: "DAMAGED"},
	{Code: 26, Label: "FULFILLED"},
	{Code: 27, Label: "PICKUP_BOOKED"},
	{Code: 38, Label: "REACHED_DESTINATION_HUB", OrderStatus: models.OrderStatusShipped},
	{Code: 39, Label: "MISROUTED"},
	{Code: 40, Label: "RTO_NDR"},
	{Code: 41, Label: "RTO_OFD"},
	{Code: 42, Label: "PICKED_UP", OrderStatus: models.OrderStatusShipped},
	{Code: 43, Label: "PICKED_UP", OrderStatus: models.OrderStatusShipped},
	{Code: 44, Label: "DISPOSED_OFF"},
	{Code: 45, Label: "CANCELLED", OrderStatus: models.OrderStatusCancelled},
	{Code: 46, Label: "RTO_IN_TRANSIT"},
	{Code: 47, Label: "QC_FAILED"},
	{Code: 48, Label: "REACHED_WAREHOUSE"},
	{Code: 49, Label: "CUSTOM_CLEARED"},
	{Code: 50, Label: "IN_FLIGHT"},
	{Code: 51, Label: "HANDOVER_TO_COURIER"},
	{Code: 52, Label: "SHIPMENT_BOOKED"},
	{Code: 54, Label: "IN_TRANSIT_OVERSEAS"},
	{Code: 55, Label: "CONNECTION_ALIGNED"},
	{Code: 56, Label: "REACHED_OVERSEAS_WAREHOUSE"},
	{Code: 57, Label: "CUSTOM_CLEARED_OVERSEAS"},
	{Code: 59, Label: "BOX_PACKING"},
	{Code: 60, Label: "FC_ALLOCATED"},
	{Code: 61, Label: "PICKLIST_GENERATED"},
	{Code: 62, Label: "READY_TO_PACK"},
	{Code: 63, Label: "PACKED"},
	{Code: 67, Label: "FC_MANIFEST_GENERATED"},
	{Code: 68, Label: "PROCESSED_AT_WAREHOUSE"},
	{Code: 71, Label: "HANDOVER_EXCEPTION"},
	{Code: 72, Label: "PACKED_EXCEPTION"},
	{Code: 75, Label: "RTO_LOCK"},
	{Code: 76, Label: "UNTRACEABLE"},
	{Code: 77, Label: "ISSUE_RELATED_TO_THE_RECIPIENT"},
	{Code: 78, Label: "REACHED_BACK_AT_SELLER_CITY"},
}

// NormalizeStatusLabel converts "Out for Delivery" style labels to OUT_FOR_DELIVERY
func NormalizeStatusLabel(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	if s == "CANCELED" {
		s = "CANCELLED"
	}
	return s
}

// DefaultStatusTable returns the built-in code table
func DefaultStatusTable() *StatusTable {
	t := &StatusTable{}
	t.build(defaultStatusMappings)
	return t
}

type statusTableFile struct {
	Statuses []StatusMapping `yaml:"statuses"`
}

// LoadStatusTable returns the built-in table with the entries of the YAML
// file at path added or replaced. An empty path returns the defaults.
func LoadStatusTable(path string) (*StatusTable, error) {
	if path == "" {
		return DefaultStatusTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read status table: %w", err)
	}
	return ParseStatusTable(data)
}

// ParseStatusTable merges YAML overrides into the built-in table
func ParseStatusTable(data []byte) (*StatusTable, error) {
	var file statusTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse status table: %w", err)
	}

	merged := make(map[int]StatusMapping, len(defaultStatusMappings)+len(file.Statuses))
	for _, m := range defaultStatusMappings {
		merged[m.Code] = m
	}
	for _, m := range file.Statuses {
		if m.Code <= 0 {
			return nil, fmt.Errorf("status table entry %q has invalid code %d", m.Label, m.Code)
		}
		m.Label = NormalizeStatusLabel(m.Label)
		if m.Label == "" {
			return nil, fmt.Errorf("status table entry %d has no label", m.Code)
		}
		if m.OrderStatus != "" && !m.OrderStatus.IsValid() {
			return nil, fmt.Errorf("status table entry %d has unknown order status %q", m.Code, m.OrderStatus)
		}
		merged[m.Code] = m
	}

	mappings := make([]StatusMapping, 0, len(merged))
	for _, m := range merged {
		mappings = append(mappings, m)
	}
	t := &StatusTable{}
	t.build(mappings)
	return t, nil
}

func (t *StatusTable) build(mappings []StatusMapping) {
	sorted := append([]StatusMapping(nil), mappings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	t.byCode = make(map[int]StatusMapping, len(sorted))
	t.byLabel = make(map[string]StatusMapping, len(sorted))
	for _, m := range sorted {
		t.byCode[m.Code] = m
		// lowest code wins for shared labels
		if _, exists := t.byLabel[m.Label]; !exists {
			t.byLabel[m.Label] = m
		}
	}
}

// Lookup finds a mapping by code
func (t *StatusTable) Lookup(code int) (StatusMapping, bool) {
	m, ok := t.byCode[code]
	return m, ok
}

// LookupLabel finds a mapping by label in any casing
func (t *StatusTable) LookupLabel(label string) (StatusMapping, bool) {
	m, ok := t.byLabel[NormalizeStatusLabel(label)]
	return m, ok
}

// Resolve maps a code, falling back to the label. An unknown status still
// yields its normalized label so courierStatus can be recorded; ok is false
// only when neither is usable.
func (t *StatusTable) Resolve(code int, label string) (StatusMapping, bool) {
	if code > 0 {
		if m, ok := t.Lookup(code); ok {
			return m, true
		}
	}
	if m, ok := t.LookupLabel(label); ok {
		return m, true
	}
	normalized := NormalizeStatusLabel(label)
	if normalized == "" {
		return StatusMapping{}, false
	}
	return StatusMapping{Code: code, Label: normalized}, true
}

// Len returns the number of codes in the table
func (t *StatusTable) Len() int {
	return len(t.byCode)
}
