package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

func TestRecordTicket(t *testing.T) {
	okBefore := testutil.ToFloat64(FacturasParsed.WithLabelValues(StatusOK))
	failedBefore := testutil.ToFloat64(FacturasParsed.WithLabelValues(StatusFailed))
	currencyBefore := testutil.ToFloat64(ParseErrors.WithLabelValues("CurrencyError"))

	RecordTicket(types.Ticket{Facturas: []types.Slot{
		{Factura: &types.Factura{}},
		{Factura: &types.Factura{}},
		{Err: types.NewParseError(types.KindCurrencyError, "Currency", "XYZ")},
	}})

	assert.Equal(t, okBefore+2, testutil.ToFloat64(FacturasParsed.WithLabelValues(StatusOK)))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(FacturasParsed.WithLabelValues(StatusFailed)))
	assert.Equal(t, currencyBefore+1, testutil.ToFloat64(ParseErrors.WithLabelValues("CurrencyError")))
}

func TestRecordValidation(t *testing.T) {
	before := testutil.ToFloat64(ValidationErrors.WithLabelValues("NotSameItems"))

	RecordValidation([]*types.ValidationError{
		{Kind: types.KindNotSameItems},
		{Kind: types.KindNotSameItems},
	})

	assert.Equal(t, before+2, testutil.ToFloat64(ValidationErrors.WithLabelValues("NotSameItems")))
}

func TestRecordFileAndHandler(t *testing.T) {
	before := testutil.ToFloat64(FilesProcessed.WithLabelValues(StatusFailed))
	RecordFile(false, 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(FilesProcessed.WithLabelValues(StatusFailed)))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "facturas_files_processed_total")
	assert.Contains(t, rec.Body.String(), "facturas_file_processing_seconds")
}
