package gmailclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/roster-notify/internal/config"
	"github.com/jakechorley/roster-notify/pkg/utils"
)

// Client sends operator alert email through the Gmail API
type Client struct {
	service *gmail.Service
	userID  string
}

// NewClient creates a Gmail client using an existing OAuth token with the gmail.send scope
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, userID string) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	return NewClientWithOptions(ctx, userID, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
}

// NewClientWithOptions builds the client from raw API options
func NewClientWithOptions(ctx context.Context, userID string, opts ...option.ClientOption) (*Client, error) {
	if userID == "" {
		userID = "me"
	}

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{service: service, userID: userID}, nil
}

// SendEmail sends a plain text email with the specified subject and body
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	message := buildMessage(to, subject, body)

	gmailMessage := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(message)),
	}

	if _, err := c.service.Users.Messages.Send(c.userID, gmailMessage).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func buildMessage(to, subject, body string) string {
	// Header injection guard: subjects come from error text
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
