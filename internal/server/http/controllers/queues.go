package controllers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/nickweedon/leasedkeyq/internal/keyqueue"
	queuesvc "github.com/nickweedon/leasedkeyq/internal/services/queues"
	logpkg "github.com/nickweedon/leasedkeyq/pkg/log"
)

// QueuesController handles all queue-related HTTP endpoints: queue
// management, put, the blocking get/take checkouts, lease resolution, and
// read-only inspection.
type QueuesController struct {
	svc    *queuesvc.Service
	logger logpkg.Logger
}

// NewQueuesController creates a new queues controller.
func NewQueuesController(svc *queuesvc.Service, logger logpkg.Logger) *QueuesController {
	return &QueuesController{svc: svc, logger: logger}
}

// RegisterRoutes registers all queue-related routes with the given mux.
func (c *QueuesController) RegisterRoutes(mux *http.ServeMux) {
	// Queue management
	mux.HandleFunc("/v1/queues", c.handleList)
	mux.HandleFunc("/v1/queues/create", c.handleCreate)

	// Core operations
	mux.HandleFunc("/v1/queues/put", c.handlePut)
	mux.HandleFunc("/v1/queues/get", c.handleGet)
	mux.HandleFunc("/v1/queues/take", c.handleTake)
	mux.HandleFunc("/v1/queues/ack", c.handleAck)
	mux.HandleFunc("/v1/queues/release", c.handleRelease)

	// Inspection
	mux.HandleFunc("/v1/queues/peek", c.handlePeek)
	mux.HandleFunc("/v1/queues/stats", c.handleStats)
}

// handleList lists all queues.
// GET /v1/queues
func (c *QueuesController) handleList(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, map[string]any{"queues": c.svc.ListQueues()})
}

// handleCreate explicitly creates a queue.
// POST /v1/queues/create {"queue": "orders"}
func (c *QueuesController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Queue string `json:"queue"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.CreateQueue(req.Queue); err != nil {
		writeServiceError(w, err)
		return
	}
	writeCreated(w)
}

// handlePut inserts or updates a value.
// POST /v1/queues/put {"queue","key","value":<base64>,"policy":"update|reject|buffer"}
func (c *QueuesController) handlePut(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Queue  string `json:"queue"`
		Key    string `json:"key"`
		Value  string `json:"value"`
		Policy string `json:"policy"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	policy, ok := keyqueue.ParsePutPolicy(req.Policy)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid policy; use update|reject|buffer")
		return
	}
	value, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be base64")
		return
	}
	if err := c.svc.Put(r.Context(), req.Queue, req.Key, value, policy); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

type dequeueBody struct {
	Queue      string `json:"queue"`
	Key        string `json:"key"` // take only
	WaitMs     int64  `json:"wait_ms"`
	LeaseTTLMs int64  `json:"lease_ttl_ms"`
}

type itemResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"` // base64
	Token string `json:"token"`
}

// handleGet checks out the next item in FIFO order. A wait that elapses
// with no item yields 204 No Content.
// POST /v1/queues/get {"queue","wait_ms","lease_ttl_ms"}
func (c *QueuesController) handleGet(w http.ResponseWriter, r *http.Request) {
	c.dequeue(w, r, false)
}

// handleTake checks out a specific key, ignoring FIFO order of other keys.
// POST /v1/queues/take {"queue","key","wait_ms","lease_ttl_ms"}
func (c *QueuesController) handleTake(w http.ResponseWriter, r *http.Request) {
	c.dequeue(w, r, true)
}

func (c *QueuesController) dequeue(w http.ResponseWriter, r *http.Request, take bool) {
	if !requirePost(w, r) {
		return
	}
	var req dequeueBody
	if !decodeBody(w, r, &req) {
		return
	}
	svcReq := queuesvc.DequeueRequest{
		Queue:      req.Queue,
		Key:        req.Key,
		WaitMs:     req.WaitMs,
		LeaseTTLMs: req.LeaseTTLMs,
	}

	var (
		item queuesvc.Item
		err  error
	)
	if take {
		if req.Key == "" {
			writeError(w, http.StatusBadRequest, "key is required")
			return
		}
		item, err = c.svc.Take(r.Context(), svcReq)
	} else {
		item, err = c.svc.Get(r.Context(), svcReq)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeNoContent(w)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, itemResponse{
		Key:   item.Key,
		Value: base64.StdEncoding.EncodeToString(item.Value),
		Token: item.Token,
	})
}

// handleAck permanently resolves a lease.
// POST /v1/queues/ack {"queue","key","token"}
func (c *QueuesController) handleAck(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Queue string `json:"queue"`
		Key   string `json:"key"`
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.Ack(r.Context(), req.Queue, req.Key, req.Token); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

// handleRelease returns a leased item to the queue.
// POST /v1/queues/release {"queue","key","token","front":true}
func (c *QueuesController) handleRelease(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Queue string `json:"queue"`
		Key   string `json:"key"`
		Token string `json:"token"`
		Front bool   `json:"front"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.Release(r.Context(), req.Queue, req.Key, req.Token, req.Front); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

// handlePeek returns the available value for a key without checking it out.
// GET /v1/queues/peek?queue=orders&key=k1
func (c *QueuesController) handlePeek(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	queue := r.URL.Query().Get("queue")
	key := r.URL.Query().Get("key")
	value, ok, err := c.svc.Peek(r.Context(), queue, key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "key not available")
		return
	}
	writeJSON(w, map[string]string{
		"key":   key,
		"value": base64.StdEncoding.EncodeToString(value),
	})
}

// handleStats snapshots a queue.
// GET /v1/queues/stats?queue=orders
func (c *QueuesController) handleStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	stats, err := c.svc.Stats(r.Context(), r.URL.Query().Get("queue"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, stats)
}
