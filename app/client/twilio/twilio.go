package twilio

import (
	"context"
	"fmt"
	"medremind/app/config"

	"github.com/samber/do"
	twiliogo "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

type Client struct {
	rest      *twiliogo.RestClient
	from      string
	validator twclient.RequestValidator
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return New(cfg.Messenger.Twilio), nil
}

func New(cfg config.Twilio) *Client {
	return &Client{
		rest: twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		from:      cfg.From,
		validator: twclient.NewRequestValidator(cfg.AuthToken),
	}
}

func (c *Client) Send(_ context.Context, to, body string) error {
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.rest.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to create twilio message: %w", err)
	}

	return nil
}

// ValidSignature checks the X-Twilio-Signature of a webhook call.
func (c *Client) ValidSignature(url string, params map[string]string, signature string) bool {
	return c.validator.Validate(url, params, signature)
}

// Reply renders a TwiML response carrying a single message, or an empty
// response when body is empty.
func Reply(body string) (string, error) {
	var verbs []twiml.Element
	if body != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: body})
	}

	return twiml.Messages(verbs)
}
