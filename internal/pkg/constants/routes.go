package constants

// Static route constants
const (
	PaymentWebhookRoute = "/webhooks/payment"
	APIRoute            = "/api"
	// Upload path without leading slash for filesystem construction
	UploadsPath = "uploads"
)

// PaymentSignatureHeader carries the provider's webhook signature.
const PaymentSignatureHeader = "X-Payment-Signature"
