package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"

	"github.com/soptable/portal/core"
)

// Notifier is told about every finished batch.
type Notifier interface {
	NotifyBatch(ctx context.Context, sum Summary)
}

// ErrorReport renders the rejected candidates of a batch as a mail attachment.
type ErrorReport struct {
	Filename    string
	ContentType string
	Write       func(w io.Writer, errs []RowError) error
}

// MailNotifier emails the batch summary to a fixed list of recipients.
type MailNotifier struct {
	mailSvc     core.EmailService
	recipients  []mail.Address
	errorReport *ErrorReport
}

func NewMailNotifier(mailSvc core.EmailService, recipients []mail.Address) *MailNotifier {
	return &MailNotifier{mailSvc: mailSvc, recipients: recipients}
}

// AttachErrors makes n attach report to every mail of a batch that has errors.
func (n *MailNotifier) AttachErrors(report ErrorReport) *MailNotifier {
	n.errorReport = &report
	return n
}

func (n *MailNotifier) NotifyBatch(_ context.Context, sum Summary) {
	if len(n.recipients) == 0 {
		return
	}
	msg := &core.EmailMessage{
		To: n.recipients,
		Subject: fmt.Sprintf("User upload: %d inserted, %d updated, %d skipped, %d errors",
			sum.Inserted, sum.Updated, sum.Skipped, len(sum.Errors)),
		TemplateName: "batch_report",
		TemplateData: sum,
	}
	if n.errorReport != nil && len(sum.Errors) > 0 {
		var buf bytes.Buffer
		// the summary in the body is still sent when the attachment cannot be built
		if err := n.errorReport.Write(&buf, sum.Errors); err == nil {
			_ = msg.Attach(&buf, n.errorReport.Filename, n.errorReport.ContentType)
		}
	}
	n.mailSvc.SendMessages(msg)
}
