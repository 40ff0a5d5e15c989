package sender

import "context"

// Credentials are the decrypted per-tenant provider credentials. They never
// touch persistence in this form.
type Credentials struct {
	APIKey   string
	SenderID string
}

// EmailMessage is one outbound email.
type EmailMessage struct {
	To             string
	Subject        string
	HTML           string
	SenderIdentity string
	UnsubscribeURL string
	Credentials    Credentials
}

// SMSMessage is one outbound SMS to an E.164 number.
type SMSMessage struct {
	To          string
	Body        string
	Credentials Credentials
}

// SendResult stores provider call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string
}

// EmailSender is the outbound email delivery port.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (*SendResult, error)
}

// SMSSender is the outbound SMS delivery port.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) (*SendResult, error)
}
