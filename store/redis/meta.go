package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// PutInitialMeta stores the metadata Hash for a freshly accepted job.
// Progress fields are written as empty strings so external workers can
// fill them in without changing the Hash shape.
func (s *Store) PutInitialMeta(ctx context.Context, rec *job.Record) error {
	jID := rec.ID.String()
	key := metaKey(jID)

	// Check for duplicate.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("tilemath/redis: put meta check exists: %w", err)
	}
	if exists > 0 {
		return tilemath.ErrJobAlreadyExists
	}

	if _, err := s.client.HSet(ctx, key, recordToMeta(rec)).Result(); err != nil {
		return fmt.Errorf("tilemath/redis: put meta: %w", err)
	}
	return nil
}

// Publish adds the job to the submission Stream and returns the Stream
// entry ID as an acknowledgement token.
func (s *Store) Publish(ctx context.Context, rec *job.Record) (string, error) {
	entryID, err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"job_id":    rec.ID.String(),
			"spec_json": string(rec.Spec.CanonicalJSON()),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("tilemath/redis: publish: %w", err)
	}
	return entryID, nil
}

// GetMeta retrieves a job's metadata Hash and rebuilds the record view.
func (s *Store) GetMeta(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	vals, err := s.client.HGetAll(ctx, metaKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("tilemath/redis: get meta: %w", err)
	}
	if len(vals) == 0 {
		return nil, tilemath.ErrJobNotFound
	}
	return metaToRecord(vals)
}

// GetResult retrieves the result summary an external worker wrote, or
// (nil, nil) when no result has been produced yet.
func (s *Store) GetResult(ctx context.Context, jobID id.JobID) (*job.Summary, error) {
	raw, err := s.client.Get(ctx, resultKey(jobID.String())).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("tilemath/redis: get result: %w", err)
	}
	var summary job.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("tilemath/redis: decode result: %w", err)
	}
	return &summary, nil
}

// ── helpers ──

func recordToMeta(rec *job.Record) map[string]interface{} {
	m := map[string]interface{}{
		"job_id":          rec.ID.String(),
		"state":           string(rec.State),
		"created_at":      rec.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      rec.UpdatedAt.Format(time.RFC3339Nano),
		"started_at":      "",
		"finished_at":     "",
		"error":           "",
		"wall_time_ms":    "",
		"compute_time_ms": "",
		"spec_json":       string(rec.Spec.CanonicalJSON()),
	}
	if rec.StartedAt != nil {
		m["started_at"] = rec.StartedAt.Format(time.RFC3339Nano)
	}
	if rec.FinishedAt != nil {
		m["finished_at"] = rec.FinishedAt.Format(time.RFC3339Nano)
	}
	if rec.Error != "" {
		m["error"] = rec.Error
	}
	if rec.WallTimeMs != nil {
		m["wall_time_ms"] = strconv.FormatFloat(*rec.WallTimeMs, 'f', -1, 64)
	}
	if rec.ComputeTimeMs != nil {
		m["compute_time_ms"] = strconv.FormatFloat(*rec.ComputeTimeMs, 'f', -1, 64)
	}
	return m
}

func metaToRecord(m map[string]string) (*job.Record, error) {
	jID, err := id.ParseJobID(m["job_id"])
	if err != nil {
		return nil, fmt.Errorf("tilemath/redis: parse job id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	rec := &job.Record{
		Entity: tilemath.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:    jID,
		State: job.State(m["state"]),
		Error: m["error"],
	}

	if v := m["spec_json"]; v != "" {
		_ = json.Unmarshal([]byte(v), &rec.Spec) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		rec.StartedAt = &t
	}
	if v := m["finished_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		rec.FinishedAt = &t
	}
	if v := m["wall_time_ms"]; v != "" {
		f, _ := strconv.ParseFloat(v, 64) //nolint:errcheck // best-effort parse from trusted Redis data
		rec.WallTimeMs = &f
	}
	if v := m["compute_time_ms"]; v != "" {
		f, _ := strconv.ParseFloat(v, 64) //nolint:errcheck // best-effort parse from trusted Redis data
		rec.ComputeTimeMs = &f
	}
	return rec, nil
}
