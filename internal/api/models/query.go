package models

// RootStatus is returned by GET /.
type RootStatus struct {
	Status string `json:"status"`
}

// AgentOnline is the RootStatus message of a running server.
const AgentOnline = "Agent is online and running"

// QueryRequest is the optional JSON body of POST /query.
type QueryRequest struct {
	Prompt string `json:"prompt"`
}

// QueryResponse carries the model's answer.
type QueryResponse struct {
	Response string `json:"response"`
}

// Reading is a stored watchlist observation.
type Reading struct {
	ID              string    `json:"id"`
	City            string    `json:"city"`
	Country         string    `json:"country,omitempty"`
	Status          string    `json:"status"`
	Message         string    `json:"message,omitempty"`
	Parameter       string    `json:"parameter,omitempty"`
	Value           *float64  `json:"value,omitempty"`
	Unit            string    `json:"unit,omitempty"`
	Timestamp       string    `json:"timestamp,omitempty"`
	TimestampSource string    `json:"timestampSource,omitempty"`
	StationID       int       `json:"stationId,omitempty"`
	SensorID        int       `json:"sensorId,omitempty"`
	ObservedAt      Timestamp `json:"observedAt"`
}

// ReadingList is returned by GET /v1/air-quality/readings.
type ReadingList struct {
	City  string    `json:"city"`
	Items []Reading `json:"items"`
}
