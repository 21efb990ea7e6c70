package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer delivers a finished report.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// GmailMailer sends through the Gmail API as the authenticated user.
type GmailMailer struct {
	svc *gmail.Service
}

func NewGmailMailer(ctx context.Context, opts ...option.ClientOption) (*GmailMailer, error) {
	opts = append([]option.ClientOption{option.WithScopes(gmail.GmailSendScope)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gmail service")
	}
	return &GmailMailer{svc: svc}, nil
}

func (m *GmailMailer) Send(ctx context.Context, msg Message) error {
	raw, err := BuildMIME(msg)
	if err != nil {
		return err
	}
	_, err = m.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	return errors.Wrap(err, "gmail send")
}

// BuildMIME renders msg as a multipart/mixed RFC 2822 message.
func BuildMIME(msg Message) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("message has no recipients")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	body, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "mime body")
	}
	if _, err := body.Write([]byte(msg.Body)); err != nil {
		return nil, errors.Wrap(err, "mime body")
	}

	for _, a := range msg.Attachments {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, errors.Wrap(err, "mime attachment")
		}
		if _, err := part.Write([]byte(wrapBase64(a.Data))); err != nil {
			return nil, errors.Wrap(err, "mime attachment")
		}
	}

	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "mime close")
	}
	return buf.Bytes(), nil
}

// wrapBase64 breaks encoded data into 76 character lines.
func wrapBase64(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	for len(enc) > 76 {
		sb.WriteString(enc[:76])
		sb.WriteString("\r\n")
		enc = enc[76:]
	}
	sb.WriteString(enc)
	return sb.String()
}
