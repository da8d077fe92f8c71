package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
)

// UnparsableDeliveryDays ranks quotes without a usable estimate last.
const UnparsableDeliveryDays = 999

// EffectiveCost is what the merchant pays for a quote
func EffectiveCost(q models.CourierQuote, isCOD bool) float64 {
	cost := q.FreightCharge
	if isCOD {
		cost += q.CODCharges
	}
	return carriers.Round2(cost)
}

// ParseDeliveryDays returns the lower bound of an estimate such as "3-5".
func ParseDeliveryDays(s string) int {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(s)
	}
	if end == 0 {
		return UnparsableDeliveryDays
	}
	days, err := strconv.Atoi(s[:end])
	if err != nil {
		return UnparsableDeliveryDays
	}
	return days
}

// SelectCheapest returns the quote with the lowest effective cost, ties going
// to the lower courier id. Returns nil for no quotes.
func SelectCheapest(quotes []models.CourierQuote, isCOD bool) *models.CourierQuote {
	var best *models.CourierQuote
	for i := range quotes {
		q := &quotes[i]
		if best == nil {
			best = q
			continue
		}
		cost, bestCost := EffectiveCost(*q, isCOD), EffectiveCost(*best, isCOD)
		if cost < bestCost || (cost == bestCost && q.CourierID < best.CourierID) {
			best = q
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// SelectFastest returns the quote with the smallest delivery estimate, ties
// going to the lower courier id. Returns nil for no quotes.
func SelectFastest(quotes []models.CourierQuote) *models.CourierQuote {
	var best *models.CourierQuote
	for i := range quotes {
		q := &quotes[i]
		if best == nil {
			best = q
			continue
		}
		days, bestDays := ParseDeliveryDays(q.EstimatedDeliveryDays), ParseDeliveryDays(best.EstimatedDeliveryDays)
		if days < bestDays || (days == bestDays && q.CourierID < best.CourierID) {
			best = q
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// RankQuotes sorts quotes cheapest-first and flags the cheapest and fastest
func RankQuotes(quotes []models.CourierQuote, isCOD bool) []models.RankedQuote {
	ranked := make([]models.RankedQuote, 0, len(quotes))
	for _, q := range quotes {
		ranked = append(ranked, models.RankedQuote{CourierQuote: q, EffectiveCost: EffectiveCost(q, isCOD)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EffectiveCost != ranked[j].EffectiveCost {
			return ranked[i].EffectiveCost < ranked[j].EffectiveCost
		}
		return ranked[i].CourierID < ranked[j].CourierID
	})

	cheapest := SelectCheapest(quotes, isCOD)
	fastest := SelectFastest(quotes)
	for i := range ranked {
		ranked[i].IsCheapest = cheapest != nil && ranked[i].CourierID == cheapest.CourierID
		ranked[i].IsFastest = fastest != nil && ranked[i].CourierID == fastest.CourierID
	}
	return ranked
}

// RateShopper quotes routes through the gateway
type RateShopper struct {
	gateway carriers.Gateway
	logger  *logrus.Entry
}

// NewRateShopper creates a new rate shopper
func NewRateShopper(gateway carriers.Gateway, logger *logrus.Entry) *RateShopper {
	return &RateShopper{
		gateway: gateway,
		logger:  logger.WithField("component", "rate-shopper"),
	}
}

// Quotes returns the ranked quotes for a route. An unserviceable route
// yields an empty slice.
func (r *RateShopper) Quotes(ctx context.Context, req carriers.ServiceabilityRequest) ([]models.RankedQuote, error) {
	result, err := r.gateway.CheckServiceability(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Available {
		return []models.RankedQuote{}, nil
	}
	return RankQuotes(result.Couriers, req.IsCOD), nil
}

// Cheapest returns the cheapest courier for a route, or nil when the route
// has no quotes and the aggregator should choose
func (r *RateShopper) Cheapest(ctx context.Context, req carriers.ServiceabilityRequest) (*models.CourierQuote, error) {
	result, err := r.gateway.CheckServiceability(ctx, req)
	if err != nil {
		return nil, err
	}
	choice := SelectCheapest(result.Couriers, req.IsCOD)
	if choice != nil {
		r.logger.WithFields(logrus.Fields{
			"courier_id":     choice.CourierID,
			"courier_name":   choice.CourierName,
			"effective_cost": EffectiveCost(*choice, req.IsCOD),
			"quotes":         len(result.Couriers),
		}).Debug("Selected cheapest courier")
	}
	return choice, nil
}
