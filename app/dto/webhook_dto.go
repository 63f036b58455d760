package dto

// InboundSMSRequest is the gateway's callback for a message we received.
type InboundSMSRequest struct {
	From string `json:"from" validate:"required"`
	Body string `json:"body" validate:"required"`
}

// DeliveryStatusRequest is the gateway's delivery report callback.
type DeliveryStatusRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	Recipient string `json:"recipient"`
	Status    string `json:"status" validate:"required"`
	Detail    string `json:"detail,omitempty"`
}

// ReloadReviewLinksResponse reports the result of a pool reload.
type ReloadReviewLinksResponse struct {
	Rows   int `json:"rows"`
	Cities int `json:"cities"`
}
