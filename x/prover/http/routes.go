package http

// Route patterns for the prover REST surface.
const (
	routeSubmitProof = "/proof"
	routeProofStatus = "/proof/{id}"
)

// Route names for mux URL building.
const (
	routeNameSubmitProof = "prover_submit_proof"
	routeNameProofStatus = "prover_proof_status"
)
