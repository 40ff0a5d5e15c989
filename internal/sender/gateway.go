package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 10 * time.Second

type emailGatewayRequest struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	HTML           string `json:"html"`
	From           string `json:"from"`
	UnsubscribeURL string `json:"unsubscribeUrl,omitempty"`
}

type smsGatewayRequest struct {
	To       string `json:"to"`
	Body     string `json:"body"`
	SenderID string `json:"senderId,omitempty"`
}

// HTTPGateway delivers email and SMS through JSON-over-HTTP provider
// endpoints. Per-tenant credentials ride on each request; retries are the
// callers' concern.
type HTTPGateway struct {
	client        *resty.Client
	emailEndpoint string
	smsEndpoint   string
}

func NewHTTPGateway(emailEndpoint, smsEndpoint string) (*HTTPGateway, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewHTTPGatewayWithClient(emailEndpoint, smsEndpoint, client)
}

func NewHTTPGatewayWithClient(emailEndpoint, smsEndpoint string, client *resty.Client) (*HTTPGateway, error) {
	trimmedEmail := strings.TrimSpace(emailEndpoint)
	trimmedSMS := strings.TrimSpace(smsEndpoint)
	if trimmedEmail == "" {
		return nil, fmt.Errorf("email gateway endpoint is required")
	}
	if trimmedSMS == "" {
		return nil, fmt.Errorf("sms gateway endpoint is required")
	}
	for _, endpoint := range []string{trimmedEmail, trimmedSMS} {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
		}
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPGateway{
		client:        client,
		emailEndpoint: trimmedEmail,
		smsEndpoint:   trimmedSMS,
	}, nil
}

func (g *HTTPGateway) SendEmail(ctx context.Context, msg EmailMessage) (*SendResult, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("email recipient is required")
	}

	reqBody := emailGatewayRequest{
		To:             msg.To,
		Subject:        msg.Subject,
		HTML:           msg.HTML,
		From:           msg.SenderIdentity,
		UnsubscribeURL: msg.UnsubscribeURL,
	}

	return g.post(ctx, g.emailEndpoint, reqBody, msg.Credentials)
}

func (g *HTTPGateway) SendSMS(ctx context.Context, msg SMSMessage) (*SendResult, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("sms recipient is required")
	}

	reqBody := smsGatewayRequest{
		To:       msg.To,
		Body:     msg.Body,
		SenderID: msg.Credentials.SenderID,
	}

	return g.post(ctx, g.smsEndpoint, reqBody, msg.Credentials)
}

func (g *HTTPGateway) post(ctx context.Context, endpoint string, body any, creds Credentials) (*SendResult, error) {
	req := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if strings.TrimSpace(creds.APIKey) != "" {
		req.SetHeader("Authorization", "Bearer "+creds.APIKey)
	}

	response, err := req.Post(endpoint)
	if err != nil {
		return nil, &SenderError{
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &SenderError{
			Message:   "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  gatewayMessageID(response),
		}, nil
	}

	return nil, &SenderError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func gatewayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func gatewayMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
