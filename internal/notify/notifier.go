package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"familytree/internal/models"
)

// maxConcurrentSends bounds parallel calls to the AWS APIs per notification
const maxConcurrentSends = 4

// AdminDirectory lists the accounts that receive review notifications
type AdminDirectory interface {
	List() ([]models.AdminUser, error)
}

// FlagSource reports runtime feature flags
type FlagSource interface {
	IsEnabled(key string) bool
}

// Notifier tells admins about new submissions and submitters about review
// outcomes
type Notifier struct {
	email      EmailSender
	sms        SMSSender
	admins     AdminDirectory
	flags      FlagSource
	appBaseURL string
}

// NewNotifier creates a notifier. flags may be nil, in which case
// notifications are always on.
func NewNotifier(email EmailSender, sms SMSSender, admins AdminDirectory, flags FlagSource, appBaseURL string) *Notifier {
	return &Notifier{
		email:      email,
		sms:        sms,
		admins:     admins,
		flags:      flags,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

type message struct {
	subject string
	html    string
	text    string
	sms     string
}

func (n *Notifier) enabled() bool {
	return n.flags == nil || n.flags.IsEnabled(models.FlagNotifications)
}

// PendingSubmitted emails every active admin about a new submission
func (n *Notifier) PendingSubmitted(ctx context.Context, p *models.PendingMember) error {
	if !n.enabled() {
		slog.Debug("Notifications disabled, skipping new submission notice", "pending_id", p.ID)
		return nil
	}

	admins, err := n.admins.List()
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}

	msg := n.pendingSubmittedMessage(p)
	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for _, admin := range admins {
		if !admin.Active || admin.Email == "" {
			continue
		}
		to := admin.Email
		g.Go(func() error {
			return n.sendEmail(ctx, to, msg)
		})
	}
	return g.Wait()
}

// SubmissionApproved tells the submitter their submission became memberID
func (n *Notifier) SubmissionApproved(ctx context.Context, p *models.PendingMember, memberID string) error {
	if !n.enabled() {
		return nil
	}
	return n.notifySubmitter(ctx, p, n.approvedMessage(p, memberID))
}

// SubmissionRejected tells the submitter their submission was declined
func (n *Notifier) SubmissionRejected(ctx context.Context, p *models.PendingMember) error {
	if !n.enabled() {
		return nil
	}
	return n.notifySubmitter(ctx, p, n.rejectedMessage(p))
}

func (n *Notifier) notifySubmitter(ctx context.Context, p *models.PendingMember, msg message) error {
	var g errgroup.Group
	if p.SubmitterEmail != "" {
		g.Go(func() error {
			return n.sendEmail(ctx, p.SubmitterEmail, msg)
		})
	}
	if p.SubmitterPhone != "" && n.sms != nil && n.sms.IsEnabled() {
		g.Go(func() error {
			if err := n.sms.Send(ctx, p.SubmitterPhone, msg.sms); err != nil {
				slog.Error("Failed to send SMS notification", "pending_id", p.ID, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (n *Notifier) sendEmail(ctx context.Context, to string, msg message) error {
	if n.email == nil || !n.email.IsEnabled() {
		return nil
	}
	if err := n.email.Send(ctx, to, msg.subject, msg.html, msg.text); err != nil {
		slog.Error("Failed to send email notification", "to", to, "subject", msg.subject, "error", err)
		return err
	}
	return nil
}

func proposedName(p *models.PendingMember) string {
	var m models.Member
	p.Proposed.Apply(&m)
	if name := m.FullName(); name != "" {
		return name
	}
	return "(unnamed)"
}

func (n *Notifier) pendingSubmittedMessage(p *models.PendingMember) message {
	name := proposedName(p)
	reviewLink := fmt.Sprintf("%s/admin/pending/%d", n.appBaseURL, p.ID)
	submitter := p.SubmitterName
	if submitter == "" {
		submitter = "anonymous"
	}

	return message{
		subject: "New family member submission: " + name,
		html: renderHTML("New submission / طلب إضافة جديد",
			[]string{
				fmt.Sprintf("%s submitted <strong>%s</strong> for review.", html.EscapeString(submitter), html.EscapeString(name)),
				fmt.Sprintf(`<a href="%s" class="button">Review submission</a>`, html.EscapeString(reviewLink)),
			},
			[]string{
				fmt.Sprintf("قام %s بإرسال طلب إضافة <strong>%s</strong> للمراجعة.", html.EscapeString(submitter), html.EscapeString(name)),
			}),
		text: fmt.Sprintf(`%s submitted %s for review.

Review it here: %s

قام %s بإرسال طلب إضافة %s للمراجعة.
`, submitter, name, reviewLink, submitter, name),
	}
}

func (n *Notifier) approvedMessage(p *models.PendingMember, memberID string) message {
	name := proposedName(p)
	treeLink := fmt.Sprintf("%s/tree?member=%s", n.appBaseURL, memberID)

	return message{
		subject: "Your submission was approved / تمت الموافقة على طلبك",
		html: renderHTML("Submission approved / تمت الموافقة",
			[]string{
				fmt.Sprintf("Thank you. <strong>%s</strong> has been added to the family tree.", html.EscapeString(name)),
				fmt.Sprintf(`<a href="%s" class="button">View in tree</a>`, html.EscapeString(treeLink)),
			},
			[]string{
				fmt.Sprintf("شكراً لك. تمت إضافة <strong>%s</strong> إلى شجرة العائلة.", html.EscapeString(name)),
			}),
		text: fmt.Sprintf(`Thank you. %s has been added to the family tree.
%s

شكراً لك. تمت إضافة %s إلى شجرة العائلة.
`, name, treeLink, name),
		sms: fmt.Sprintf("تمت إضافة %s إلى شجرة العائلة. %s has been added to the family tree.", name, name),
	}
}

func (n *Notifier) rejectedMessage(p *models.PendingMember) message {
	name := proposedName(p)
	note := p.ReviewNote

	en := []string{fmt.Sprintf("Your submission for <strong>%s</strong> was not accepted.", html.EscapeString(name))}
	ar := []string{fmt.Sprintf("لم يتم قبول طلب إضافة <strong>%s</strong>.", html.EscapeString(name))}
	text := fmt.Sprintf("Your submission for %s was not accepted.\n", name)
	if note != "" {
		en = append(en, "Reviewer note: "+html.EscapeString(note))
		ar = append(ar, "ملاحظة المراجع: "+html.EscapeString(note))
		text += "Reviewer note: " + note + "\n"
	}
	text += fmt.Sprintf("\nلم يتم قبول طلب إضافة %s.\n", name)

	return message{
		subject: "Your submission was not accepted / لم يتم قبول طلبك",
		html:    renderHTML("Submission not accepted / لم يتم قبول الطلب", en, ar),
		text:    text,
		sms:     fmt.Sprintf("لم يتم قبول طلب إضافة %s. Your submission for %s was not accepted.", name, name),
	}
}

// renderHTML wraps already-escaped paragraphs in the shared email layout
func renderHTML(title string, english, arabic []string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2e7d32; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #2e7d32; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</h1>
		</div>
		<div class="content">
`)
	for _, p := range english {
		b.WriteString("\t\t\t<p>" + p + "</p>\n")
	}
	b.WriteString("\t\t\t<div dir=\"rtl\">\n")
	for _, p := range arabic {
		b.WriteString("\t\t\t\t<p>" + p + "</p>\n")
	}
	b.WriteString(`			</div>
		</div>
		<div class="footer">
			<p>This is an automated message from the family tree. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`)
	return b.String()
}
