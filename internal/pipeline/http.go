package pipeline

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"liquidity-event-evaluator/internal/decision"
	"liquidity-event-evaluator/internal/storage"
)

// DefaultDecisionLimit is the page size of DecisionsHandler without ?limit.
const DefaultDecisionLimit = 50

// DecisionsHandler serves recent decisions from store as JSON, newest first.
// Query parameters:
//   - outcome: ACCEPTED, REJECTED or FAILED; all when absent
//   - limit: maximum number of decisions, Default: 50
func DecisionsHandler(store storage.DecisionStore, logger *zerolog.Logger) http.Handler {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		outcome := decision.Outcome(strings.ToUpper(q.Get("outcome")))
		switch outcome {
		case "", decision.OutcomeAccepted, decision.OutcomeRejected, decision.OutcomeFailed:
		default:
			http.Error(w, "unknown outcome", http.StatusBadRequest)
			return
		}

		limit := DefaultDecisionLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		decisions, err := store.List(r.Context(), outcome)
		if err != nil {
			log.Error().Err(err).Msg("list decisions")
			http.Error(w, "list decisions", http.StatusInternalServerError)
			return
		}

		out := make([]decision.Summary, 0, min(limit, len(decisions)))
		for i := len(decisions) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, decision.Summarize(decisions[i]))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Warn().Err(err).Msg("write decisions")
		}
	})
}
