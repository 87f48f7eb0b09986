package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Jerry-OC/mission-control/pkg/models"
)

type fakeLedger struct {
	entries    []models.LedgerEntry
	uncoded    int64
	updated    *models.Transaction
	updateErr  error
	lastStatus string
	lastLimit  int
	lastID     string
	lastUpdate models.UpdateTransactionRequest
}

func (f *fakeLedger) List(ctx context.Context, status string, limit int) ([]models.LedgerEntry, error) {
	f.lastStatus = status
	f.lastLimit = limit
	return f.entries, nil
}

func (f *fakeLedger) UncodedCount(ctx context.Context) (int64, error) {
	return f.uncoded, nil
}

func (f *fakeLedger) Update(ctx context.Context, id string, req models.UpdateTransactionRequest) (*models.Transaction, error) {
	f.lastID = id
	f.lastUpdate = req
	return f.updated, f.updateErr
}

type fakeSplitter struct {
	created int
	err     error
	lastReq models.SplitRequest
}

func (f *fakeSplitter) Split(ctx context.Context, req models.SplitRequest) (int, error) {
	f.lastReq = req
	return f.created, f.err
}

func request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestTransactionHandlerList(t *testing.T) {
	t.Run("defaults to uncoded-first paging", func(t *testing.T) {
		ledger := &fakeLedger{uncoded: 12}
		h := NewTransactionHandler(ledger, &fakeSplitter{})

		c, rec := request(http.MethodGet, "/transactions", "")
		assert.NoError(t, h.List(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "", ledger.lastStatus)
		assert.Equal(t, defaultListLimit, ledger.lastLimit)

		var resp ListTransactionsResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(12), resp.UncodedCount)
		assert.Equal(t, 0, resp.Total)
	})

	t.Run("status=all widens the cap and drops the filter", func(t *testing.T) {
		ledger := &fakeLedger{}
		h := NewTransactionHandler(ledger, &fakeSplitter{})

		c, _ := request(http.MethodGet, "/transactions?status=all&limit=50", "")
		assert.NoError(t, h.List(c))

		assert.Equal(t, "", ledger.lastStatus)
		assert.Equal(t, allListLimit, ledger.lastLimit)
	})

	t.Run("passes an explicit status and limit through", func(t *testing.T) {
		ledger := &fakeLedger{}
		h := NewTransactionHandler(ledger, &fakeSplitter{})

		c, _ := request(http.MethodGet, "/transactions?status=coded&limit=25", "")
		assert.NoError(t, h.List(c))

		assert.Equal(t, "coded", ledger.lastStatus)
		assert.Equal(t, 25, ledger.lastLimit)
	})
}

func TestTransactionHandlerUpdate(t *testing.T) {
	t.Run("applies the patch and reports the refreshed uncoded count", func(t *testing.T) {
		job := "job-1"
		ledger := &fakeLedger{uncoded: 3, updated: &models.Transaction{ID: "tx-1", Status: models.TransactionStatusCoded}}
		h := NewTransactionHandler(ledger, &fakeSplitter{})

		c, rec := request(http.MethodPatch, "/transactions/tx-1", `{"job_id":"job-1"}`)
		c.SetParamNames("id")
		c.SetParamValues("tx-1")
		assert.NoError(t, h.Update(c))

		assert.Equal(t, "tx-1", ledger.lastID)
		assert.Equal(t, &job, ledger.lastUpdate.JobID)
		assert.Nil(t, ledger.lastUpdate.Status)

		var resp UpdateTransactionResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "tx-1", resp.Transaction.ID)
		assert.Equal(t, int64(3), resp.UncodedCount)
	})

	t.Run("ledger errors pass through untouched", func(t *testing.T) {
		ledger := &fakeLedger{updateErr: httperror.NewHTTPError(http.StatusNotFound, "transaction tx-9 not found")}
		h := NewTransactionHandler(ledger, &fakeSplitter{})

		c, _ := request(http.MethodPatch, "/transactions/tx-9", `{"notes":"x"}`)
		c.SetParamNames("id")
		c.SetParamValues("tx-9")

		err := h.Update(c)
		assert.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}

func TestTransactionHandlerSplit(t *testing.T) {
	t.Run("returns the number of children created", func(t *testing.T) {
		ledger := &fakeLedger{uncoded: 5}
		splitter := &fakeSplitter{created: 3}
		h := NewTransactionHandler(ledger, splitter)

		c, rec := request(http.MethodPost, "/transactions/split", `{"original_id":"tx-1","splits":[]}`)
		assert.NoError(t, h.Split(c))

		assert.Equal(t, "tx-1", splitter.lastReq.OriginalID)

		var resp SplitTransactionResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.SplitsCreated)
		assert.Equal(t, int64(5), resp.UncodedCount)
	})

	t.Run("splitter validation errors pass through", func(t *testing.T) {
		splitter := &fakeSplitter{err: httperror.NewHTTPError(http.StatusBadRequest, "a split needs at least 2 parts")}
		h := NewTransactionHandler(&fakeLedger{}, splitter)

		c, _ := request(http.MethodPost, "/transactions/split", `{"original_id":"tx-1"}`)

		err := h.Split(c)
		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}
