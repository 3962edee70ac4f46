// Package queue implements the Job Queue (spec.md §4.F): a persistent,
// FIFO-with-priority work list backed by goqite/sqlite. Priority is modeled
// as N goqite queues, one per configured priority bucket, since goqite has
// no native priority concept; reserve tries buckets lowest-number-first.
package queue

// PayloadKind enumerates job payload shapes, per spec.md §9's re-architecture
// note: "a tagged record with an enumerated payload kind ... so the queue
// can carry future job types without runtime shape-sniffing."
type PayloadKind string

const ScrapePropertiesKind PayloadKind = "scrape-properties"

// Payload is the message body stored in goqite. It carries only enough to
// look the job up in the JobStore; status, attempts, and results live there,
// not in the queue transport.
type Payload struct {
	Kind  PayloadKind `json:"kind"`
	JobID string      `json:"jobId"`
}

// EnqueueOptions mirrors spec.md §4.F's enqueue(term, opts) contract.
type EnqueueOptions struct {
	Priority    int // lower = earlier; default 10
	DelayMs     int
	MaxAttempts int // default 3
}

// DefaultEnqueueOptions returns spec.md's defaults.
func DefaultEnqueueOptions() EnqueueOptions {
	return EnqueueOptions{Priority: 10, MaxAttempts: 3}
}

// Reservation is a job handed to a worker by reserve(), bound until
// complete/fail/the visibility timeout elapses. The bucket/message fields
// are opaque plumbing back to the goqite queue the job was reserved from;
// callers only ever round-trip a Reservation they received from Reserve.
type Reservation struct {
	JobID      string
	SearchTerm string
	Priority   int
	Attempts   int

	bucketIdx int
	msgID     string
}

// Stats is the per-state count returned by stats().
type Stats struct {
	Pending   int
	Active    int
	Completed int
	Failed    int
}
