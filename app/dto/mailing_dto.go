package dto

// CreateMailingRequest represents the mailing creation payload
type CreateMailingRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Text  string `json:"text" validate:"required"`
}

// CreateMailingResponse is returned after a mailing and its recipient
// cohort were committed
type CreateMailingResponse struct {
	Message         string `json:"message"`
	MailingID       uint   `json:"mailing_id"`
	UUID            string `json:"uuid"`
	Status          string `json:"status"`
	TotalRecipients int64  `json:"total_recipients"`
	CreatedAt       string `json:"created_at"`
}

// DispatchMailingRequest triggers a dispatch run for one mailing
type DispatchMailingRequest struct {
	MailingID uint `json:"mailing_id" validate:"required,gte=1"`
}

// DispatchMailingResponse reports the outcome of one dispatch run
type DispatchMailingResponse struct {
	MailingID           uint   `json:"mailing_id"`
	Status              string `json:"status"`
	ProcessedInThisRun  int64  `json:"processed_in_this_run"`
	TotalSentForMailing int64  `json:"total_sent_for_mailing"`
	RemainingToSend     int64  `json:"remaining_to_send"`
	TotalRecipients     int64  `json:"total_recipients"`
}

// MailingDTO is the read model of a mailing with aggregate counts
type MailingDTO struct {
	ID              uint   `json:"id"`
	UUID            string `json:"uuid"`
	Title           string `json:"title"`
	Text            string `json:"text"`
	Status          string `json:"status"`
	TotalSent       int64  `json:"total_sent"`
	RemainingToSend int64  `json:"remaining_to_send"`
	TotalRecipients int64  `json:"total_recipients"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// GetMailingRequest fetches one mailing with its aggregate counts
type GetMailingRequest struct {
	MailingID uint `json:"mailing_id" validate:"required,gte=1"`
}

// ListMailingsRequest represents a paginated listing request
type ListMailingsRequest struct {
	Page     int `json:"page" query:"page" validate:"omitempty,gte=1"`
	PageSize int `json:"page_size" query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// ListMailingsResponse represents a page of mailings
type ListMailingsResponse struct {
	Items      []MailingDTO `json:"items"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int64        `json:"total_count"`
}
