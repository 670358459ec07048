package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ShipmentsCreated counts created shipments.
	ShipmentsCreated prometheus.Counter
	// ShipmentsVoided counts administratively voided shipments.
	ShipmentsVoided prometheus.Counter
	// ManifestsDispatched counts created dispatch manifests.
	ManifestsDispatched prometheus.Counter
	// ManifestsReceived counts received dispatch manifests.
	ManifestsReceived prometheus.Counter
	// ManifestsVoided counts voided dispatch manifests.
	ManifestsVoided prometheus.Counter
	// ShipmentsReportedMissing counts shipments flagged missing on reception.
	ShipmentsReportedMissing prometheus.Counter
	// SettlementsComputed counts settlement breakdown computations.
	SettlementsComputed prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ShipmentsCreated = newCounter(reg, namespace, "shipments_created_total", "Count of shipments created.")
		ShipmentsVoided = newCounter(reg, namespace, "shipments_voided_total", "Count of shipments voided.")
		ManifestsDispatched = newCounter(reg, namespace, "manifests_dispatched_total", "Count of dispatch manifests created.")
		ManifestsReceived = newCounter(reg, namespace, "manifests_received_total", "Count of dispatch manifests received.")
		ManifestsVoided = newCounter(reg, namespace, "manifests_voided_total", "Count of dispatch manifests voided.")
		ShipmentsReportedMissing = newCounter(reg, namespace, "shipments_reported_missing_total", "Count of shipments reported missing on manifest reception.")
		SettlementsComputed = newCounter(reg, namespace, "settlements_computed_total", "Count of settlement breakdown computations.")
	})
}

func newCounter(reg prometheus.Registerer, namespace, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register counter %s: %w", name, err))
	}
	return c
}
