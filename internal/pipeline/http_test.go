package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-event-evaluator/internal/decision"
	"liquidity-event-evaluator/internal/pipeline"
)

func getDecisions(t *testing.T, h http.Handler, target string) (int, []decision.Summary) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out []decision.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestDecisionsHandler(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first := h.pipeline.Evaluate(ctx, pairEvent(tokenA, poolA, 100))
	h.simulator.fee = decimal.NewFromInt(-40)
	second := h.pipeline.Evaluate(ctx, pairEvent(tokenB, poolB, 101))

	handler := pipeline.DecisionsHandler(h.pipeline.Store(), nil)

	code, all := getDecisions(t, handler, "/decisions")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, decision.OutcomeRejected, all[0].Outcome)
	assert.Equal(t, decision.StageCost, all[0].Stage)
	assert.Equal(t, "-40.00", all[0].FeePercent)
	assert.Equal(t, "50000.00", all[0].LiquidityUSD)
	assert.Equal(t, poolB, all[0].Pool)

	_, accepted := getDecisions(t, handler, "/decisions?outcome=accepted")
	require.Len(t, accepted, 1)
	assert.Equal(t, first.ID, accepted[0].ID)

	_, limited := getDecisions(t, handler, "/decisions?limit=1")
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)

	_, none := getDecisions(t, handler, "/decisions?outcome=FAILED")
	assert.Empty(t, none)

	code, _ = getDecisions(t, handler, "/decisions?outcome=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = getDecisions(t, handler, "/decisions?limit=0")
	assert.Equal(t, http.StatusBadRequest, code)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decisions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
