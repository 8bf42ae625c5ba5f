// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"net/url"
	"slices"
	"strconv"
	"text/template"
	"time"

	"github.com/samber/oops"
)

// TLSMode selects how the SMTP connection is secured.
type TLSMode string

// TLS modes.
const (
	TLSNone     TLSMode = "none"
	TLSStartTLS TLSMode = "starttls"
	TLSImplicit TLSMode = "tls"
)

// TLSModes lists the accepted TLS modes.
func TLSModes() []TLSMode {
	return []TLSMode{TLSNone, TLSStartTLS, TLSImplicit}
}

const resetSubject = "Reset password"

// SMTPConfig locates the relay and shapes the message.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      TLSMode
	// ResetURL, when set, gets the token appended as ?token= and is
	// included in the message as a link.
	ResetURL string
	Timeout  time.Duration
}

// Validate checks the relay address, sender address and TLS mode.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return oops.Code("NOTIFY_INVALID_CONFIG").With("field", "host").Errorf("smtp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return oops.Code("NOTIFY_INVALID_CONFIG").With("field", "port").Errorf("smtp port out of range: %d", c.Port)
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		return oops.Code("NOTIFY_INVALID_CONFIG").With("field", "from").Wrap(err)
	}
	if !slices.Contains(TLSModes(), c.TLS) {
		return oops.Code("NOTIFY_INVALID_CONFIG").With("field", "tls").Errorf("unknown tls mode %q", c.TLS)
	}
	if c.ResetURL != "" {
		u, err := url.Parse(c.ResetURL)
		if err != nil || !u.IsAbs() {
			return oops.Code("NOTIFY_INVALID_CONFIG").With("field", "reset_url").Errorf("reset url must be absolute: %q", c.ResetURL)
		}
	}
	return nil
}

// transmitFunc hands a rendered message to the relay.
type transmitFunc func(ctx context.Context, from, to string, msg []byte) error

// SMTPSender mails each reset request as a plain text and HTML message.
type SMTPSender struct {
	cfg      SMTPConfig
	from     *mail.Address
	opts     options
	now      func() time.Time
	transmit transmitFunc
}

// NewSMTPSender creates an SMTPSender. A zero Timeout means ten seconds.
func NewSMTPSender(cfg SMTPConfig, opts ...Option) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("field", "from").Wrap(err)
	}
	s := &SMTPSender{
		cfg:  cfg,
		from: from,
		opts: buildOptions(opts),
		now:  time.Now,
	}
	s.transmit = s.dial
	return s, nil
}

// Send renders req and delivers it. Permanent (5xx) replies are marked
// ErrUndeliverable so they are not retried.
func (s *SMTPSender) Send(ctx context.Context, req ResetRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUndeliverable, err)
	}
	msg, err := renderResetEmail(s.from, req, s.cfg.ResetURL, s.now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUndeliverable, err)
	}
	if err := s.transmit(ctx, s.from.Address, req.Email, msg); err != nil {
		return err
	}
	s.opts.logger.InfoContext(ctx, "reset email sent", "email", req.Email, "relay", s.cfg.Host)
	return nil
}

func (s *SMTPSender) dial(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.TLS == TLSImplicit {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return smtpFailure("dial", err).With("addr", addr).Wrap(err)
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	//nolint:errcheck // a failed deadline surfaces on the first command
	conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close() //nolint:errcheck,gosec // already failing
		return smtpFailure("greeting", err).Wrap(classify(err))
	}
	defer client.Close() //nolint:errcheck // Quit reports the meaningful error

	if s.cfg.TLS == TLSStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return smtpFailure("starttls", nil).Wrapf(ErrUndeliverable, "relay %s does not offer STARTTLS", addr)
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return smtpFailure("starttls", err).Wrap(classify(err))
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return smtpFailure("auth", err).Wrap(classify(err))
		}
	}
	if err := client.Mail(from); err != nil {
		return smtpFailure("mail", err).Wrap(classify(err))
	}
	if err := client.Rcpt(to); err != nil {
		return smtpFailure("rcpt", err).Wrap(classify(err))
	}
	w, err := client.Data()
	if err != nil {
		return smtpFailure("data", err).Wrap(classify(err))
	}
	if _, err := w.Write(msg); err != nil {
		return smtpFailure("data", err).Wrap(classify(err))
	}
	if err := w.Close(); err != nil {
		return smtpFailure("data", err).Wrap(classify(err))
	}
	if err := client.Quit(); err != nil {
		return smtpFailure("quit", err).Wrap(classify(err))
	}
	return nil
}

func smtpFailure(stage string, err error) oops.OopsErrorBuilder {
	b := oops.Code("SMTP_SEND_FAILED").With("stage", stage)
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		b = b.With("smtp_code", tpErr.Code)
	}
	return b
}

// classify marks permanent SMTP replies as undeliverable.
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return fmt.Errorf("%w: %w", ErrUndeliverable, err)
	}
	return err
}

type resetEmailData struct {
	Email string
	Token string
	Link  string
}

var plainResetTemplate = template.Must(template.New("reset.txt").Parse(`Hello {{.Email}},

{{if .Link}}Follow this link to reset your password:
{{.Link}}

{{end}}Use this token to reset your password:
{{.Token}}

The token can be used once and expires soon. If you did not ask to reset
your password, ignore this message.
`))

var htmlResetTemplate = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Reset password</title></head>
<body>
<p>Hello {{.Email}},</p>
{{if .Link}}<p><a href="{{.Link}}">Reset your password</a></p>
{{end}}<p>Use this token to reset your password:</p>
<p><code>{{.Token}}</code></p>
<p>The token can be used once and expires soon. If you did not ask to reset your password, ignore this message.</p>
</body>
</html>
`))

// renderResetEmail builds a multipart/alternative message for req.
func renderResetEmail(from *mail.Address, req ResetRequest, resetURL string, date time.Time) ([]byte, error) {
	data := resetEmailData{Email: req.Email, Token: req.Token}
	if resetURL != "" {
		u, err := url.Parse(resetURL)
		if err != nil {
			return nil, oops.Code("NOTIFY_RENDER_FAILED").With("field", "reset_url").Wrap(err)
		}
		q := u.Query()
		q.Set("token", req.Token)
		u.RawQuery = q.Encode()
		data.Link = u.String()
	}

	var plain, html bytes.Buffer
	if err := plainResetTemplate.Execute(&plain, data); err != nil {
		return nil, oops.Code("NOTIFY_RENDER_FAILED").With("part", "plain").Wrap(err)
	}
	if err := htmlResetTemplate.Execute(&html, data); err != nil {
		return nil, oops.Code("NOTIFY_RENDER_FAILED").With("part", "html").Wrap(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=utf-8", plain.Bytes()},
		{"text/html; charset=utf-8", html.Bytes()},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
		}
		qw := quotedprintable.NewWriter(pw)
		if _, err := qw.Write(part.content); err != nil {
			return nil, oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
		}
		if err := qw.Close(); err != nil {
			return nil, oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", (&mail.Address{Address: req.Email}).String())
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", resetSubject))
	fmt.Fprintf(&msg, "Date: %s\r\n", date.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

var _ Sender = (*SMTPSender)(nil)
