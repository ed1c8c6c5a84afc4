// Package analytics derives broadcast-campaign funnel metrics from the
// analytics store and pushes them into the CRM as a reporting record. It
// runs off the job queue, never inline on the webhook path.
package analytics

import "math"

// Snapshot is one recomputed campaign funnel.
type Snapshot struct {
	BroadcastID  string  `json:"broadcastId"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Failed       int     `json:"failed"`
	Responses    int     `json:"responses"`
	Appointments int     `json:"appointments"`
	DeliveryRate float64 `json:"deliveryRate"`
	ResponseRate float64 `json:"responseRate"`
	// ConversionRate is appointments over responses, the canonical formula.
	ConversionRate float64 `json:"conversionRate"`
	// BookingRateOfDelivered is appointments over delivered. Display-only
	// alternative, never used for decisions.
	BookingRateOfDelivered float64 `json:"bookingRateOfDelivered"`
}

// Rate returns numerator/denominator as a percentage rounded to two
// decimals, and 0 when the denominator is 0.
func Rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(denominator)*100*100) / 100
}
