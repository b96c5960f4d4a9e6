package client

import (
	"context"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
)

// Gateway is the remote registration service as seen by the device.
type Gateway interface {
	// Submit performs one outbound operation for a declaration.
	Submit(ctx context.Context, kind models.OperationKind, payload models.SubmissionPayload) (*models.SubmissionAck, error)
	// FetchTab returns one page of server search results.
	FetchTab(ctx context.Context, query models.TabQuery) (*models.TabPage, error)
	Ping(ctx context.Context) error
	Close() error
}
