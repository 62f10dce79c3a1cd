package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, rec *job.Record, next Handler) error {
		logger.Info("job started",
			slog.String("job_id", rec.ID.String()),
			slog.String("op", rec.Spec.Op),
			slog.String("shape", fmt.Sprintf("%dx%dx%d", rec.Spec.M, rec.Spec.N, rec.Spec.K)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job_id", rec.ID.String()),
				slog.String("op", rec.Spec.Op),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job_id", rec.ID.String()),
				slog.String("op", rec.Spec.Op),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
