package redis

// Redis key naming conventions for job metadata.
// Keys are shared with external queue consumers, so the layout is a wire
// contract: a metadata Hash and a result String per job, plus one Stream
// carrying submissions.

// metaKey returns the Hash key for a job's metadata: job:{id}:meta
func metaKey(id string) string { return "job:" + id + ":meta" }

// resultKey returns the String key for a job's result summary: job:{id}:result
func resultKey(id string) string { return "job:" + id + ":result" }

// DefaultStream is the Stream new submissions are published to.
const DefaultStream = "queue:jobs"
