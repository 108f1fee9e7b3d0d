package domain

import "context"

type Exporter interface {
	Export(ctx context.Context, summary BatchSummary) error
}
