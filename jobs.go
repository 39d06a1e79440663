package main

import (
	"context"
	"errors"

	"github.com/romkeeper/romkeeper/job"
)

// runJob runs fn through the registry so CLI invocations get the same
// lifecycle as daemon-scheduled work: one job per kind and scope,
// cooperative cancellation and a terminal report.
func runJob(ctx context.Context, registry *job.Registry, kind job.Kind, scope string, fn job.Func) error {
	handle, err := registry.Start(ctx, kind, scope, fn)
	if err != nil {
		return err
	}

	report := job.Wait(handle)
	switch report.Status {
	case job.StatusFailed:
		return errors.New(report.Err)
	case job.StatusCancelled:
		return context.Canceled
	}
	return nil
}
