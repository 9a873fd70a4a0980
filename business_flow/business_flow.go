// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/wahelp/mailing-engine/app/dto"
	"github.com/wahelp/mailing-engine/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for request tracking
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToMailingDTO converts a mailing model plus aggregate counts to its read model
func ToMailingDTO(mailing models.Mailing, totalSent, remaining, total int64) dto.MailingDTO {
	return dto.MailingDTO{
		ID:              mailing.ID,
		UUID:            mailing.UUID.String(),
		Title:           mailing.Title,
		Text:            mailing.Text,
		Status:          string(mailing.Status),
		TotalSent:       totalSent,
		RemainingToSend: remaining,
		TotalRecipients: total,
		CreatedAt:       mailing.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       mailing.UpdatedAt.Format(time.RFC3339),
	}
}
