package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBooking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveBooking("conflict")

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")); got != 2 {
		t.Fatalf("expected 2 created bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("conflict")); got != 1 {
		t.Fatalf("expected 1 conflict booking, got %v", got)
	}
}

func TestObserveTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveTransition("accept", "ok")
	m.ObserveTransition("accept", "forbidden")

	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("accept", "ok")); got != 1 {
		t.Fatalf("expected 1 accept ok, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("created")
	m.ObserveTransition("accept", "ok")
	m.ObserveAvailabilityLatency(0.1)
}
