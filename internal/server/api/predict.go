package api

import (
	"net/http"

	"github.com/ayusman/signcheck/internal/mlclient"
)

// PredictHandler serves the inference boundary: POST /predict.
type PredictHandler struct {
	predictor mlclient.Predictor
}

// NewPredictHandler creates a PredictHandler.
func NewPredictHandler(p mlclient.Predictor) *PredictHandler {
	return &PredictHandler{predictor: p}
}

// ServeHTTP implements the http.Handler interface.
func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	pred, err := h.predictor.Predict(r.Context(), body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}
