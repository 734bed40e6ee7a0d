package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lojasmm/plotbot/internal/plotapi"
)

// StatusProber reports the Q&A API's own status document.
type StatusProber interface {
	Status(ctx context.Context) (*plotapi.StatusResponse, error)
}

type healthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Health answers "ok" for liveness. With ?deep=1 it also asks the Q&A API
// and reports 503 when the API cannot be reached.
func Health(api StatusProber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("deep") == "" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		code := http.StatusOK
		st, err := api.Status(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("web: upstream health probe failed")
			resp.Status = "degraded"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp.Upstream = st.Status
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}
