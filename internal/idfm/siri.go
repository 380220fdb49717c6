package idfm

// Typed shapes for the SIRI-Lite StopMonitoring JSON the PRIM endpoint
// returns. Every level is optional in practice: absent deliveries, visits or
// calls decode to zero values and the parser treats them as empty, not as
// errors. Timestamps stay strings here because upstream mixes fractional
// seconds and offsets; ParseTime owns that normalization.

// SiriResponse is the top-level stop-monitoring response envelope.
type SiriResponse struct {
	Siri SiriDelivery `json:"Siri"`
}

// SiriDelivery wraps the service delivery.
type SiriDelivery struct {
	ServiceDelivery ServiceDelivery `json:"ServiceDelivery"`
}

// ServiceDelivery carries the stop-monitoring deliveries of one response.
type ServiceDelivery struct {
	ResponseTimestamp      string                   `json:"ResponseTimestamp"`
	StopMonitoringDelivery []StopMonitoringDelivery `json:"StopMonitoringDelivery"`
}

// StopMonitoringDelivery is one delivery's batch of stop visits.
type StopMonitoringDelivery struct {
	ResponseTimestamp  string               `json:"ResponseTimestamp"`
	Status             string               `json:"Status"`
	MonitoredStopVisit []MonitoredStopVisit `json:"MonitoredStopVisit"`
}

// MonitoredStopVisit is one expected vehicle passage.
type MonitoredStopVisit struct {
	RecordedAtTime          string                  `json:"RecordedAtTime"`
	MonitoringRef           Ref                     `json:"MonitoringRef"`
	MonitoredVehicleJourney MonitoredVehicleJourney `json:"MonitoredVehicleJourney"`
}

// MonitoredVehicleJourney describes the vehicle serving a visit.
type MonitoredVehicleJourney struct {
	LineRef           Ref              `json:"LineRef"`
	OperatorRef       Ref              `json:"OperatorRef"`
	DirectionRef      Ref              `json:"DirectionRef"`
	DestinationRef    Ref              `json:"DestinationRef"`
	PublishedLineName []LocalizedValue `json:"PublishedLineName"`
	DestinationName   []LocalizedValue `json:"DestinationName"`
	VehicleMode       []string         `json:"VehicleMode"`
	MonitoredCall     MonitoredCall    `json:"MonitoredCall"`
}

// MonitoredCall carries the timing fields for the monitored stop.
type MonitoredCall struct {
	StopPointName         []LocalizedValue `json:"StopPointName"`
	AimedDepartureTime    string           `json:"AimedDepartureTime"`
	ExpectedDepartureTime string           `json:"ExpectedDepartureTime"`
	AimedArrivalTime      string           `json:"AimedArrivalTime"`
	ExpectedArrivalTime   string           `json:"ExpectedArrivalTime"`
	DepartureStatus       string           `json:"DepartureStatus"`
	ArrivalStatus         string           `json:"ArrivalStatus"`
}

// Ref is SIRI-Lite's wrapped reference value.
type Ref struct {
	Value string `json:"value"`
}

// LocalizedValue is SIRI-Lite's wrapped display string.
type LocalizedValue struct {
	Value string `json:"value"`
}
