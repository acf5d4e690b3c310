package ports

import (
	"context"

	"github.com/awarefund/smartmoney/internal/domain"
)

// NotifySink delivers a single alert to one destination. The dispatcher fans
// an alert out to every configured sink after the severity gate and dedup
// cache pass it.
type NotifySink interface {
	// Name identifies the sink in logs and stats.
	Name() string
	// Send delivers the alert, returning false (no error) when the sink
	// itself decides not to deliver (e.g. below its own threshold), and an
	// error only on a genuine delivery failure.
	Send(ctx context.Context, a domain.Alert) (bool, error)
}
