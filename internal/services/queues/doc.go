// Package queues provides the service layer for queue operations.
//
// The service is a thin layer that coordinates:
//   - runtime.Runtime: named queue resolution and lifecycle
//   - keyqueue.Queue: the core engine (put/get/take/ack/release)
//
// and adds per-operation structured logging and Prometheus metrics. Both
// the HTTP server and any future transport share one Service instance.
package queues
