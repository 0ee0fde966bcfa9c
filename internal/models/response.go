package models

// ResponseEnvelope is the canonical response shape for every HTTP endpoint.
type ResponseEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PublishResult is returned to the HTTP caller after a successful publish.
type PublishResult struct {
	MessageID string `json:"message_id"`
	Queue     string `json:"queue"`
	Exchange  string `json:"exchange"`
}

// ConnectionStatus reports broker connectivity for the status endpoint.
type ConnectionStatus struct {
	Connected bool     `json:"connected"`
	State     string   `json:"state"`
	Exchange  string   `json:"exchange"`
	Queues    []string `json:"queues"`
}

// NutritionFacts is what the nutrition lookup collaborator returns for a
// food name and portion.
type NutritionFacts struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}
