package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/sink"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// recordingSink keeps what it was given and fails on demand.
type recordingSink struct {
	stored   []types.Ticket
	logged   [][]error
	storeErr error
}

func (r *recordingSink) Init(context.Context, bool) error { return nil }

func (r *recordingSink) Store(_ context.Context, ticket types.Ticket) (sink.Stats, error) {
	if r.storeErr != nil {
		return sink.Stats{}, r.storeErr
	}
	r.stored = append(r.stored, ticket)
	return sink.Stats{Facturas: len(ticket.Succeeded())}, nil
}

func (r *recordingSink) LogErrors(_ context.Context, errs []error) error {
	r.logged = append(r.logged, errs)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestPipelineLoadWithoutPersist(t *testing.T) {
	rec := &recordingSink{}
	p := NewPipeline(nil, rec, 1, false, nil)

	outcome, err := p.Load(context.Background(), validInvoices+"\n"+badTotal, false)
	require.NoError(t, err)
	assert.True(t, outcome.Failed())
	assert.False(t, outcome.Persisted)
	assert.Empty(t, rec.stored)
	assert.Empty(t, rec.logged)
}

func TestPipelineLoadCleanTicket(t *testing.T) {
	rec := &recordingSink{}
	p := NewPipeline(nil, rec, 4, false, nil)

	outcome, err := p.Load(context.Background(), "  \n"+validInvoices+"\n\n", true)
	require.NoError(t, err)
	assert.False(t, outcome.Failed())
	assert.True(t, outcome.Persisted)
	assert.Equal(t, 2, outcome.Stored.Facturas)
	require.Len(t, rec.stored, 1)
	assert.Len(t, rec.stored[0].Facturas, 2)
	assert.Empty(t, rec.logged)
}

func TestPipelineRejectedTicketLogsEverything(t *testing.T) {
	rec := &recordingSink{}
	p := NewPipeline(nil, rec, 1, false, nil)

	outcome, err := p.Load(context.Background(), badCurrency+"\n"+badTotal, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidationFailed))
	assert.False(t, outcome.Persisted)
	assert.Empty(t, rec.stored)

	require.Len(t, rec.logged, 1)
	require.Len(t, rec.logged[0], 2)
	kind, _ := errors.KindOf(rec.logged[0][0])
	assert.Equal(t, types.KindCurrencyError, kind)
	kind, _ = errors.KindOf(rec.logged[0][1])
	assert.Equal(t, types.KindItemSumNotEqual, kind)
	assert.Equal(t, 2, outcome.Stored.Logs)
}

func TestPipelineContinueOnErrorDropsRejectedInvoices(t *testing.T) {
	rec := &recordingSink{}
	p := NewPipeline(nil, rec, 1, true, nil)

	outcome, err := p.Load(context.Background(), badTotal+"\n"+badCurrency+"\n"+validInvoices, true)
	require.NoError(t, err)
	assert.True(t, outcome.Persisted)

	require.Len(t, rec.stored, 1)
	stored := rec.stored[0]
	require.Len(t, stored.Facturas, 3)
	assert.False(t, stored.Facturas[0].OK(), "parse failure is kept for logging")
	assert.Equal(t, int32(1), stored.Facturas[1].Factura.Header.InvoiceNumber)
	assert.Equal(t, int32(2), stored.Facturas[2].Factura.Header.InvoiceNumber)

	require.Len(t, rec.logged, 1)
	assert.Len(t, rec.logged[0], 1)
	assert.Len(t, outcome.Ticket.Facturas, 4)
}

func TestPipelineStoreFailure(t *testing.T) {
	rec := &recordingSink{storeErr: errors.Mark(errors.New("connection reset"), errors.ErrDBConnection)}
	p := NewPipeline(nil, rec, 1, false, nil)

	outcome, err := p.Load(context.Background(), validInvoices, true)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.True(t, errors.Is(err, errors.ErrDBConnection))
	assert.Contains(t, err.Error(), "failed to store ticket")
}
