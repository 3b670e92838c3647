package legacy

import (
	"context"
	"fmt"

	"github.com/dvloznov/cashflow-migration/internal/gcs"
)

// Load reads and decodes a closures export from a local path or a gs:// URI.
func Load(ctx context.Context, svc gcs.StorageService, location string) (*Dataset, error) {
	data, err := gcs.ReadSource(ctx, svc, location)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", location, err)
	}

	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Load: %s: %w", location, err)
	}
	return ds, nil
}
