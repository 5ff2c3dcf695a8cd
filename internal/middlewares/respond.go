package middlewares

import (
	"encoding/json"
	"net/http"

	"github.com/seprediction/backend/internal/models"
)

// writeResult answers with the same {success, message} envelope the handlers use
func writeResult(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ResultResponse{Success: false, Message: message})
}
