// Package notify sends job-completion emails. idock's original worker
// (_examples/original_source/idock/src/main.cpp) builds a Poco MailMessage
// and hands it to an SMTPClientSession once a job's ligands have all been
// docked; no mail library appears anywhere in the retrieved example pack,
// so this package is built on net/smtp alone — see DESIGN.md.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/turtacn/idock-worker/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// Config holds SMTP connection parameters, following the MinIOConfig /
// RedisConfig shape of internal/config: a plain mapstructure-tagged struct
// with no I/O of its own.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// auth builds the PLAIN auth net/smtp needs, or nil when no credentials are
// configured (a local relay that accepts anonymous submission).
func (c Config) auth() smtp.Auth {
	if c.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", c.Username, c.Password, c.Host)
}

// Notifier sends completion-notification emails over SMTP.
type Notifier struct {
	cfg    Config
	logger logging.Logger
}

// NewNotifier constructs a Notifier from cfg.
func NewNotifier(cfg Config, logger logging.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

// JobCompletion carries the fields main.cpp's completion email reports:
// description, submission/completion times, and the ligand counts at each
// stage of the pipeline.
type JobCompletion struct {
	Recipient       string
	Description     string
	Submitted       time.Time
	Completed       time.Time
	LigandsSelected int
	LigandsDocked   int
	LigandsWritten  int
	ResultURL       string
}

// Send builds and delivers the "Your idock job has completed" message,
// grounded line-for-line on main.cpp's MailMessage construction.
func (n *Notifier) Send(jc JobCompletion) error {
	subject := "Your idock job has completed"
	body := fmt.Sprintf(
		"Description: %s\n"+
			"Ligands selected to dock: %d\n"+
			"Submitted: %s UTC\n"+
			"Completed: %s UTC\n"+
			"Ligands successfully docked: %d\n"+
			"Ligands written to output: %d\n"+
			"Result: %s\n",
		jc.Description,
		jc.LigandsSelected,
		jc.Submitted.UTC().Format("2006-01-02 15:04:05"),
		jc.Completed.UTC().Format("2006-01-02 15:04:05"),
		jc.LigandsDocked,
		jc.LigandsWritten,
		jc.ResultURL,
	)

	msg := buildMessage(n.cfg.From, jc.Recipient, subject, body)

	if err := smtp.SendMail(n.cfg.addr(), n.cfg.auth(), n.cfg.From, []string{jc.Recipient}, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "sending completion email")
	}

	n.logger.Info("sent job completion email", logging.String("recipient", jc.Recipient))
	return nil
}

// buildMessage renders a minimal RFC 5322 message: From/To/Subject headers,
// a blank line, then the body.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
