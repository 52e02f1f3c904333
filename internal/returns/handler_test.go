package returns

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	r.Route("/returns", NewHandler(nil, f.svc).MountRoutes)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateOfferOnly(t *testing.T) {
	f := newFixture()
	rr := serve(newTestRouter(f), http.MethodPost, "/returns",
		`{"orderId":100,"items":[{"orderItemId":11,"quantity":2,"reasonCategory":"changed_mind"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Return      *json.RawMessage `json:"return"`
		ShouldOffer bool             `json:"shouldOfferKeepIt"`
		Offer       struct {
			EstimatedCost decimal.Decimal `json:"estimatedCost"`
			Threshold     decimal.Decimal `json:"threshold"`
		} `json:"keepItOffer"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Nil(t, body.Return)
	require.True(t, body.ShouldOffer)
	require.True(t, body.Offer.EstimatedCost.Equal(decimal.NewFromInt(32)))
	require.True(t, body.Offer.Threshold.Equal(decimal.NewFromInt(10)))
	require.Empty(t, f.repo.returns)
}

func TestHandlerCreateAndInspect(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	rr := serve(router, http.MethodPost, "/returns",
		`{"orderId":100,"items":[{"orderItemId":12,"quantity":1,"reasonCategory":"defective"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		Return struct {
			ID           int64  `json:"id"`
			ReturnNumber string `json:"returnNumber"`
			Status       string `json:"status"`
			Items        []struct {
				ID int64 `json:"id"`
			} `json:"items"`
		} `json:"return"`
		ShouldOffer bool `json:"shouldOfferKeepIt"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.False(t, created.ShouldOffer)
	require.Equal(t, "RMA-2024-00001", created.Return.ReturnNumber)
	require.Equal(t, "pending", created.Return.Status)
	require.Len(t, created.Return.Items, 1)

	itemID := created.Return.Items[0].ID
	rr = serve(router, http.MethodPost, "/returns/1/inspect",
		`{"items":[{"returnItemId":`+jsonInt(itemID)+`,"condition":"good"}],"restockingFee":"5.00"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var breakdown CostBreakdown
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &breakdown))
	require.Equal(t, int64(3000), breakdown.ProductValueLossCents)
	require.Equal(t, int64(5700), breakdown.TotalActualLossCents)
	require.Equal(t, ResaleRefurbished, breakdown.Items[0].ResaleChannel)
	require.Equal(t, ConditionGood, breakdown.Items[0].Condition)

	rr = serve(router, http.MethodPost, "/returns/1/inspect", `{"items":[]}`)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rr := serve(router, http.MethodGet, "/returns/abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, http.MethodGet, "/returns/42", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(router, http.MethodPost, "/returns", `{"orderId":100,"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, http.MethodPost, "/returns", `{"orderId":100,"items":[{"orderItemId":11,"quantity":5}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, http.MethodGet, "/returns/summary?from=yesterday", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, http.MethodPost, "/returns/1/approve", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerSummary(t *testing.T) {
	f := newFixture()
	f.create(t, CreateInput{Items: []CreateItem{{OrderItemID: 12, Quantity: 1}}})
	rr := serve(newTestRouter(f), http.MethodGet, "/returns/summary?from=2024-06-01&to=2024-07-01", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var sum Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	require.Equal(t, 1, sum.Count)
	require.Equal(t, int64(3200), sum.TotalActualLossCents)
	require.Equal(t, 1, sum.ByStatus["pending"])
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
