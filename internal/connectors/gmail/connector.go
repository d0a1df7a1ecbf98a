package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"lotlister/internal"
	"lotlister/internal/config"
)

const provider = "gmail"

// Connector reads supplier mail from a Gmail label with a stored refresh
// token.
type Connector struct {
	service *gmail.Service
	query   string
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	for name, value := range map[string]string{
		"GMAIL_CLIENT_ID":     cfg.GmailClientID,
		"GMAIL_CLIENT_SECRET": cfg.GmailClientSecret,
		"GMAIL_REFRESH_TOKEN": cfg.GmailRefreshToken,
	} {
		if err := cfg.Require(name, value); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, query: "has:attachment OR subject:invoice"}, nil
}

// FetchInbox returns up to max raw messages under label that look like they
// may carry an invoice.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q(c.query).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", ref.Id, err)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, fetchedFromRaw(ref.Id, msg.InternalDate, raw))
	}
	return out, nil
}

// fetchedFromRaw fills the message metadata from its own headers, falling
// back to the Gmail id and internal date.
func fetchedFromRaw(gmailID string, internalDateMs int64, raw []byte) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{Provider: provider, MessageID: gmailID, Raw: raw}
	if internalDateMs > 0 {
		out.ReceivedAt = time.UnixMilli(internalDateMs).UTC().Format(time.RFC3339)
	} else {
		out.ReceivedAt = time.Now().UTC().Format(time.RFC3339)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return out
	}
	out.Subject = env.GetHeader("Subject")
	out.From = env.GetHeader("From")
	if id := env.GetHeader("Message-ID"); id != "" {
		out.MessageID = id
	}
	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			out.ReceivedAt = t.UTC().Format(time.RFC3339)
		}
	}
	return out
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
