// Package email provides email client functionality
package email

import (
	"fmt"
	"os"

	"github.com/CartPulse/cartpulse-go/email/templates"
	"github.com/resendlabs/resend-go"
)

type Client struct {
	resend    *resend.Client
	fromEmail string
	fromName  string
}

func NewClient() (*Client, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("TENANT_EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "noreply@cartpulse.io"
	}

	fromName := os.Getenv("TENANT_EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "CartPulse"
	}

	client := resend.NewClient(apiKey)

	return &Client{
		resend:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendTenantWelcomeEmail notifies a newly registered tenant that their
// workspace is active.
func (c *Client) SendTenantWelcomeEmail(tenantID, name, toEmail, dashboardURL string) error {
	content := templates.GetWelcomeEmailContent(templates.WelcomeEmailProps{
		Name:         name,
		TenantID:     tenantID,
		DashboardURL: dashboardURL,
	})

	htmlContent := templates.GetEmailLayout(templates.EmailLayoutProps{
		Content: content,
	})

	request := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{toEmail},
		Subject: "Your CartPulse workspace is ready",
		Html:    htmlContent,
	}

	if _, err := c.resend.Emails.Send(request); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	return nil
}
