package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ryacy/storefront/internal/config"
)

// Message carries everything needed for one license delivery email.
// All fields are required.
type Message struct {
	To          string
	ProductName string
	LicenseKey  string
	OrderID     string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// licenseTpl embeds the product name, order id and key verbatim. Values
// are not HTML-escaped; session metadata flows straight into the body.
var licenseTpl = template.Must(template.New("license").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="text-align: center; padding: 20px 0; border-bottom: 2px solid #765de7;">
    <h1 style="color: #333333; margin: 0;">Ryacy <span style="color: #765de7;">Solutions</span></h1>
  </div>
  <div style="padding: 30px 0;">
    <h2 style="color: #765de7; text-align: center;">Thank You for Your Purchase!</h2>
    <div style="background-color: #f8f9fa; border-radius: 8px; padding: 20px; border: 1px solid #eaeaea;">
      <h3 style="color: #333;">Your License Information</h3>
      <p style="color: #666;"><strong style="color: #333;">Product:</strong> {{.ProductName}}</p>
      <p style="color: #666;"><strong style="color: #333;">Order ID:</strong> {{.OrderID}}</p>
      <p style="color: #666;"><strong style="color: #333;">License Key:</strong>
        <code style="background: #eee; padding: 3px 6px; border-radius: 4px; display: block; margin-top: 5px; word-break: break-all;">{{.LicenseKey}}</code>
      </p>
      <div style="margin-top: 20px; padding-top: 20px; border-top: 1px solid #eaeaea;">
        <h4 style="color: #333;">Important Notes:</h4>
        <ul style="color: #666; padding-left: 20px;">
          <li>Keep your license key safe and secure</li>
          <li>Do not share your license key with others</li>
          <li>Your license key is permanent and will not expire</li>
          <li>For technical support, contact support@ryacy.com</li>
        </ul>
      </div>
    </div>
    <p style="color: #666; font-size: 0.9em; margin-top: 20px;">
      If you didn't make this purchase or need assistance, please contact our support team immediately.
    </p>
  </div>
</div>
`))

// RenderLicenseEmail produces the HTML body for a license delivery.
func RenderLicenseEmail(msg Message) string {
	var buf bytes.Buffer
	_ = licenseTpl.Execute(&buf, msg)
	return buf.String()
}

func validate(msg Message) error {
	var missing []string
	if msg.To == "" {
		missing = append(missing, "to")
	}
	if msg.ProductName == "" {
		missing = append(missing, "productName")
	}
	if msg.LicenseKey == "" {
		missing = append(missing, "licenseKey")
	}
	if msg.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if len(missing) > 0 {
		return errors.New("email message missing fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// SendGridSender delivers license emails through the SendGrid v3 API.
type SendGridSender struct {
	apiKey  string
	from    string
	timeout time.Duration
}

func NewSendGridSender(cfg config.EmailConfig, timeout time.Duration) *SendGridSender {
	return &SendGridSender{
		apiKey:  cfg.APIKey,
		from:    cfg.Sender,
		timeout: timeout,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	from := mail.NewEmail("Ryacy Solutions", s.from)
	to := mail.NewEmail("", msg.To)
	subject := fmt.Sprintf("Your Ryacy Solutions License Key - %s", msg.ProductName)
	html := RenderLicenseEmail(msg)
	plain := fmt.Sprintf("Product: %s\nOrder ID: %s\nLicense Key: %s\n", msg.ProductName, msg.OrderID, msg.LicenseKey)

	m := mail.NewSingleEmail(from, subject, to, plain, html)

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client := sendgrid.NewSendClient(s.apiKey)
	resp, err := client.SendWithContext(sendCtx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}

	log.Printf("[email] license key sent to=%s order=%s status=%d", msg.To, msg.OrderID, resp.StatusCode)
	return nil
}

// LogSender is a fallback for dev without SendGrid credentials.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	log.Printf("[email] to=%s product=%q order=%s key=%s", msg.To, msg.ProductName, msg.OrderID, msg.LicenseKey)
	return nil
}
