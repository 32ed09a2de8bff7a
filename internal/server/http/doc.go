// Package httpserver exposes the queue API over HTTP/JSON: queue
// management, put, the blocking get/take checkouts, ack/release, and
// read-only inspection, plus health and Prometheus metrics endpoints.
package httpserver
