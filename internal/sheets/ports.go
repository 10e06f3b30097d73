package sheets

import (
	"context"

	"carlog/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordStore loads and saves the whole record set. Save fully replaces
	// the previous contents; there is no append or patch.
	RecordStore interface {
		Load(ctx context.Context) ([]core.Record, error)
		Save(ctx context.Context, records []core.Record) error
	}

	// Reporter is implemented by stores that decode a tabular format and can
	// describe the coercions applied during the last Load.
	Reporter interface {
		LastReport() DecodeReport
	}
)
