package api

// pushPayload is the subset of a push webhook body the engine needs.
type pushPayload struct {
	Ref        string `json:"ref"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// WebhookResponse reports the outcome of one webhook delivery.
type WebhookResponse struct {
	Status        string   `json:"status"`
	Message       string   `json:"message,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	Deployed      []string `json:"deployed,omitempty"`
	Failed        []string `json:"failed,omitempty"`
}

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
