package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

func newSendGrid(cfg Config) *sendGridMailer {
	return &sendGridMailer{
		key:  cfg.APIKey,
		from: sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

type sendGridMailer struct {
	key  string
	from *sgmail.Email
}

func (s *sendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rq := sendgrid.GetRequest(s.key, sendGridEndpoint, sendGridHost)
	rq.Method = http.MethodPost
	rq.Body = sgmail.GetRequestBody(s.prepare(msg))

	rs, err := sendgrid.API(rq)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	if rs.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send mail: unexpected status code %d: %s", rs.StatusCode, rs.Body)
	}
	return nil
}

func (s *sendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return m
}
