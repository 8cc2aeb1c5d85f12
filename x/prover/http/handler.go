package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apicommon "github.com/compose-network/epoch-prover/server/api"
	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/prover"
)

const (
	defaultRetainedJobs = 4096
	maxRequestBytes     = 32 << 20
)

// Handler serves a Prover over REST. Jobs run in the background under the
// handler's context; clients poll for the outcome.
type Handler struct {
	ctx    context.Context
	prover prover.Prover
	retain int
	log    zerolog.Logger

	mu    sync.RWMutex
	jobs  map[string]*prover.JobStatus
	order []string
	wg    sync.WaitGroup
}

func NewHandler(ctx context.Context, p prover.Prover, log zerolog.Logger) *Handler {
	return &Handler{
		ctx:    ctx,
		prover: p,
		retain: defaultRetainedJobs,
		log:    log.With().Str("component", "prover-http").Logger(),
		jobs:   make(map[string]*prover.JobStatus),
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var job circuits.Job
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&job); err != nil {
		apicommon.WriteJSON(w, http.StatusBadRequest, prover.RejectionResponse("invalid job: "+err.Error()))
		return
	}
	if err := job.Validate(); err != nil {
		apicommon.WriteJSON(w, http.StatusBadRequest, prover.RejectionResponse(err.Error()))
		return
	}
	if h.ctx.Err() != nil {
		apicommon.WriteError(w, r, http.StatusServiceUnavailable, "shutting_down", "prover is shutting down", nil)
		return
	}

	requestID := uuid.NewString()
	st := &prover.JobStatus{
		ID:          requestID,
		Kind:        job.Kind,
		State:       prover.JobQueued,
		SubmittedAt: time.Now(),
	}
	h.mu.Lock()
	h.jobs[requestID] = st
	h.order = append(h.order, requestID)
	h.pruneLocked()
	h.mu.Unlock()

	h.wg.Add(1)
	go h.run(requestID, job)

	h.log.Debug().Str("request_id", requestID).Str("job_id", job.ID).Stringer("kind", job.Kind).Msg("Job accepted")
	apicommon.WriteJSON(w, http.StatusAccepted, prover.SubmissionResponse(requestID))
}

func (h *Handler) run(requestID string, job circuits.Job) {
	defer h.wg.Done()
	h.update(requestID, func(st *prover.JobStatus) { st.State = prover.JobRunning })

	res, err := h.prover.Prove(h.ctx, job)
	h.update(requestID, func(st *prover.JobStatus) {
		st.FinishedAt = time.Now()
		if err != nil {
			st.State = prover.JobFailed
			st.Error = err.Error()
			return
		}
		st.State = prover.JobCompleted
		st.Result = &res
	})
	if err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Stringer("kind", job.Kind).Msg("Job failed")
	}
}

func (h *Handler) update(requestID string, fn func(*prover.JobStatus)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.jobs[requestID]; ok {
		fn(st)
	}
}

// pruneLocked forgets the oldest finished jobs once more than retain are held.
func (h *Handler) pruneLocked() {
	if len(h.order) <= h.retain {
		return
	}
	kept := h.order[:0]
	excess := len(h.order) - h.retain
	for _, id := range h.order {
		if excess > 0 && h.jobs[id].State.Terminal() {
			delete(h.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	h.order = kept
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		apicommon.WriteError(w, r, http.StatusBadRequest, "missing_path_param", "provide /proof/{id}", nil)
		return
	}

	h.mu.RLock()
	st, ok := h.jobs[id]
	var snapshot prover.JobStatus
	if ok {
		snapshot = *st
	}
	h.mu.RUnlock()

	if !ok {
		apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "unknown proof job "+id, nil)
		return
	}
	apicommon.WriteJSON(w, http.StatusOK, prover.StatusResponse(snapshot))
}

// Wait blocks until every accepted job has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	states := make(map[prover.JobState]int)
	for _, st := range h.jobs {
		states[st.State]++
	}
	return map[string]interface{}{
		"tracked_jobs": len(h.jobs),
		"queued":       states[prover.JobQueued],
		"running":      states[prover.JobRunning],
		"completed":    states[prover.JobCompleted],
		"failed":       states[prover.JobFailed],
	}
}
