package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"leadgen/internal/model"
)

var receiptTmpl = template.Must(template.New("receipt").Option("missingkey=error").Parse(
	`Hi {{.Lead.Name}},

Thanks for reaching out to {{.Brand}}. We received your request and a member
of our team will contact you within one business day.

If you already placed an order, check your inbox for the receipt and the
onboarding form, and have your access details ready for the setup call.

- The {{.Brand}} team
`))

var alertTmpl = template.Must(template.New("alert").Option("missingkey=error").Parse(
	`New lead
Name: {{.Name}}
Email: {{.Email}}
Company: {{.Company}}
Phone: {{.Phone}}
Message: {{.Message}}
Source IP: {{.SourceIP}}
Received: {{.CreatedAt.Format "` + time.RFC3339 + `"}}
ID: {{.ID}}
`))

// ReceiptMessage is the acknowledgement sent to the lead.
func ReceiptMessage(brand string, lead model.Lead) (Message, error) {
	var buf bytes.Buffer
	data := struct {
		Brand string
		Lead  model.Lead
	}{Brand: brand, Lead: lead}
	if err := receiptTmpl.Execute(&buf, data); err != nil {
		return Message{}, errors.Wrap(err, "render receipt")
	}
	return Message{
		To:      []string{lead.Email},
		Subject: fmt.Sprintf("Thanks for contacting %s", brand),
		Body:    buf.String(),
	}, nil
}

// AlertMessage summarizes every captured field for the internal inbox.
func AlertMessage(to []string, lead model.Lead) (Message, error) {
	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, lead); err != nil {
		return Message{}, errors.Wrap(err, "render alert")
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("[Lead] %s <%s>", lead.Name, lead.Email),
		Body:    buf.String(),
	}, nil
}
