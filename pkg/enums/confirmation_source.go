package enums

// ConfirmationSource records which reconciliation path moved a payment to PAID.
type ConfirmationSource string

const (
	ConfirmationSourceWebhook ConfirmationSource = "webhook"
	ConfirmationSourcePoll    ConfirmationSource = "poll"
)

func (s ConfirmationSource) IsValid() bool {
	return s == ConfirmationSourceWebhook || s == ConfirmationSourcePoll
}
