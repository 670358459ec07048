package events

// Topics emitted by the freight core.
const (
	TopicShipmentCreated  = "shipment.created"
	TopicShipmentAssigned = "shipment.assigned"
	TopicShipmentVoided   = "shipment.voided"
	TopicShipmentMissing  = "shipment.reported_missing"

	TopicManifestDispatched = "manifest.dispatched"
	TopicManifestReceived   = "manifest.received"
	TopicManifestVoided     = "manifest.voided"

	TopicSettlementCreated = "settlement.created"
)
