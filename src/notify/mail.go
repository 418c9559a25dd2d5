package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"tablebook/src/config"
	"tablebook/src/lib"

	"github.com/rs/zerolog"
)

var ErrNoRecipient = errors.New("reservation has no guest email")

var templates = template.Must(template.New("notify").Funcs(template.FuncMap{
	"amount": formatAmount,
}).Parse(`
{{define "table_change"}}Hi {{.GuestName}},

Your reservation has moved from table {{.FromTable}} to table {{.ToTable}}.
{{- if gt .RefundAmount 0.0}}
A refund of {{amount .RefundAmount .Currency}} is on its way{{if .RefundFailed}} and will be processed by our team shortly{{end}}.
{{- end}}
{{- if gt .AmountDue 0.0}}
An outstanding balance of {{amount .AmountDue .Currency}} is payable at the venue.
{{- end}}
Your new total is {{amount .NewTotal .Currency}}.
{{end}}
{{define "payment_required"}}Hi {{.GuestName}},

Moving your reservation from table {{.FromTable}} to table {{.ToTable}} costs an additional {{amount .AmountDue .Currency}}.
Complete the payment to confirm the change. Your current table stays reserved until then.
Payment reference: {{.ChargeID}}
{{end}}
{{define "confirmation"}}Hi {{.GuestName}},

Your reservation{{if .EventName}} for {{.EventName}}{{end}} is confirmed.
Table: {{.TableNumber}}
Total paid: {{amount .TotalAmount .Currency}}
Reservation: {{.ReservationID}}
{{end}}
{{define "cancellation"}}Hi {{.GuestName}},

Your reservation for table {{.TableNumber}} has been cancelled.
{{- if .Reason}}
Reason: {{.Reason}}
{{- end}}
{{- if gt .RefundAmount 0.0}}
A refund of {{amount .RefundAmount .Currency}} has been issued to your original payment method.
{{- end}}
{{end}}
{{define "checkin_alert"}}{{.GuestName}} checked in at table {{.TableNumber}} by {{.StaffName}} at {{.CheckedInAt.Format "15:04"}}.{{end}}
`))

func formatAmount(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, strings.ToUpper(currency))
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// MailDispatcher renders notifications as plain-text email. Staff alerts go
// through the Alerter when one is configured.
type MailDispatcher struct {
	sender   Sender
	alerter  Alerter
	from     string
	fromName string
	log      *zerolog.Logger
}

func NewMailDispatcher(sender Sender, alerter Alerter, cfg config.MailConfig, log *zerolog.Logger) *MailDispatcher {
	return &MailDispatcher{
		sender:   sender,
		alerter:  alerter,
		from:     cfg.From,
		fromName: cfg.FromName,
		log:      log,
	}
}

func (d *MailDispatcher) send(ctx context.Context, to, subject, tmpl string, data any) (string, error) {
	if to == "" {
		return "", ErrNoRecipient
	}
	body, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	id, err := d.sender.Send(ctx, &lib.SendMailInput{
		From:     d.from,
		FromName: d.fromName,
		To:       []string{to},
		Subject:  subject,
		Body:     body,
	})
	if err != nil {
		return "", fmt.Errorf("sending %s email: %w", tmpl, err)
	}
	d.log.Debug().Str("template", tmpl).Str("message_id", id).Msg("email sent")
	return id, nil
}

func (d *MailDispatcher) SendTableChangeNotification(ctx context.Context, n TableChange) error {
	_, err := d.send(ctx, n.GuestEmail, "Your table has changed", "table_change", n)
	return err
}

func (d *MailDispatcher) SendTableChangePaymentRequired(ctx context.Context, n PaymentRequired) error {
	_, err := d.send(ctx, n.GuestEmail, "Payment required for your table change", "payment_required", n)
	return err
}

func (d *MailDispatcher) SendReservationConfirmation(ctx context.Context, n Confirmation) (string, error) {
	return d.send(ctx, n.GuestEmail, "Your reservation is confirmed", "confirmation", n)
}

func (d *MailDispatcher) SendCancellationNotification(ctx context.Context, n Cancellation) error {
	_, err := d.send(ctx, n.GuestEmail, "Your reservation has been cancelled", "cancellation", n)
	return err
}

func (d *MailDispatcher) NotifyCheckinAlert(ctx context.Context, n CheckinAlert) error {
	if d.alerter == nil {
		d.log.Debug().Str("reservation_id", n.ReservationID.String()).Msg("no alerter configured, skipping check-in alert")
		return nil
	}
	body, err := render("checkin_alert", n)
	if err != nil {
		return err
	}
	return d.alerter.Alert(ctx, fmt.Sprintf("Check-in: table %d", n.TableNumber), body)
}
