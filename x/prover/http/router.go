package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds the prover routes on r.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeSubmitProof, h.handleSubmit).Methods(http.MethodPost).Name(routeNameSubmitProof)
	r.HandleFunc(routeProofStatus, h.handleStatus).Methods(http.MethodGet).Name(routeNameProofStatus)
}
