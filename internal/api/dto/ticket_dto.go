package dto

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Issue       string `json:"issue" validate:"min=10,max=1000"`
	Priority    string `json:"priority" validate:"omitempty,ticket_priority"`
	Category    string `json:"category" validate:"omitempty,max=64"`
}

// UpdateTicketStatusRequest payload.
type UpdateTicketStatusRequest struct {
	Status     string `json:"status" validate:"required,ticket_status"`
	AssignedTo string `json:"assigned_to" validate:"omitempty,max=128"`
	Resolution string `json:"resolution" validate:"omitempty,max=2000"`
}

// TicketSearchQuery is the partial-id search query string.
type TicketSearchQuery struct {
	PartialID   string `query:"partial_id" json:"partial_id" validate:"min=4"`
	PhoneNumber string `query:"phone_number" json:"phone_number" validate:"required"`
}

// CustomerTicketsQuery filters a customer's ticket list.
type CustomerTicketsQuery struct {
	Status string `query:"status" json:"status" validate:"omitempty,max=32"`
	Limit  int    `query:"limit" json:"limit" validate:"gte=0,lte=50"`
}

// TicketVerifyQuery carries the last four characters of the ticket id.
type TicketVerifyQuery struct {
	LastFourDigits string `query:"last_four_digits" json:"last_four_digits" validate:"len=4"`
}
