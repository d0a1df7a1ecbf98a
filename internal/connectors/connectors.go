package connectors

import (
	"context"

	"lotlister/internal"
)

// MailConnector pulls raw supplier mail from one mailbox provider.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
