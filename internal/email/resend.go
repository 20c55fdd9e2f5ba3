package email

import (
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// ResendEmailService implements EmailService using the Resend API.
type ResendEmailService struct {
	client      *resend.Client
	fromAddress string
}

// NewResendEmailService creates a Resend-backed service. fromAddress must
// be verified in Resend.
func NewResendEmailService(apiKey, fromAddress string) *ResendEmailService {
	return &ResendEmailService{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
	}
}

// Send sends an email using the specified template via Resend.
func (r *ResendEmailService) Send(to, templateName string, data any) error {
	subject, body := r.renderTemplate(templateName, data)

	params := &resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := r.client.Emails.Send(params); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}

// SendWelcome sends the post-registration welcome email.
func (r *ResendEmailService) SendWelcome(to, name, shopURL string) error {
	return r.Send(to, TemplateWelcome, WelcomeData{Name: name, ShopURL: shopURL})
}

func (r *ResendEmailService) renderTemplate(templateName string, data any) (subject, body string) {
	switch d := data.(type) {
	case WelcomeData:
		if templateName == TemplateWelcome {
			return "Welcome to Style Haven!", renderWelcomeHTML(d)
		}
	}
	return "Message from Style Haven", fmt.Sprintf("<p>%s</p>", html.EscapeString(fmt.Sprintf("%+v", data)))
}

func renderWelcomeHTML(d WelcomeData) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Welcome to Style Haven</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #2d2a32; padding: 30px; border-radius: 10px 10px 0 0;">
        <h1 style="color: white; margin: 0; font-size: 24px;">Style Haven</h1>
    </div>
    <div style="background: #ffffff; padding: 30px; border: 1px solid #e0e0e0; border-top: none; border-radius: 0 0 10px 10px;">
        <h2 style="margin-top: 0;">Welcome, %s!</h2>
        <p>Your account is ready. New arrivals are waiting for you.</p>
        <p style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background: #c2185b; color: white; padding: 14px 30px; text-decoration: none; border-radius: 6px;">Start shopping</a>
        </p>
        <p style="color: #999; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
    </div>
</body>
</html>`, html.EscapeString(d.Name), html.EscapeString(d.ShopURL))
}
