package ledger

import (
	"context"

	"mercator-hq/s3rotate/pkg/rotation"
)

// Nop discards every run. It is used when the ledger is disabled.
type Nop struct{}

func (Nop) RecordRun(context.Context, *rotation.Report) error { return nil }

func (Nop) Runs(context.Context, Filter) ([]Run, error) { return nil, nil }

func (Nop) Events(context.Context, string) ([]rotation.Event, error) { return nil, nil }

func (Nop) Prune(context.Context, int) (int64, error) { return 0, nil }

func (Nop) Close() error { return nil }
