package loader

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/metrics"
	"github.com/ginjaninja78/facturas-loader/internal/sink"
	"github.com/ginjaninja78/facturas-loader/internal/ticketparser"
	"github.com/ginjaninja78/facturas-loader/internal/types"
	"github.com/ginjaninja78/facturas-loader/internal/validation"
)

// Outcome is what the pipeline produced for one ticket text.
type Outcome struct {
	// Ticket holds every slot as parsed, accepted or not.
	Ticket types.Ticket

	// Validation is the validator's verdict on Ticket.
	Validation *validation.Result

	// Stored counts the rows written to the sink.
	Stored sink.Stats

	// Persisted is true when the sink received the ticket.
	Persisted bool
}

// ParseErrors returns the failed slots' errors in slot order.
func (o *Outcome) ParseErrors() []*types.ParseError {
	return o.Ticket.Failed()
}

// Failed reports whether any slot failed to parse or validate.
func (o *Outcome) Failed() bool {
	return len(o.Ticket.Failed()) > 0 || (o.Validation != nil && !o.Validation.IsValid)
}

// Pipeline parses, validates and persists ticket text.
type Pipeline struct {
	parser          *ticketparser.Parser
	sink            sink.Sink
	workers         int
	continueOnError bool
	logger          *zap.Logger
}

// NewPipeline creates a Pipeline. sk may be nil, in which case nothing is
// persisted.
//
// PARAMETERS:
//   - parser: Record parser; nil means the default layout.
//   - sk: Destination of accepted invoices and error logs.
//   - workers: Pool size for parsing and validation.
//   - continueOnError: Persist the consistent invoices of a ticket even
//     when others fail validation.
func NewPipeline(parser *ticketparser.Parser, sk sink.Sink, workers int, continueOnError bool, logger *zap.Logger) *Pipeline {
	if parser == nil {
		parser = ticketparser.Default()
	}
	return &Pipeline{
		parser:          parser,
		sink:            sk,
		workers:         workers,
		continueOnError: continueOnError,
		logger:          logging.OrNop(logger),
	}
}

// Load runs the whole pipeline on text.
//
// PROCESSING STEPS:
//   1. Trim surrounding whitespace and parse into slots
//   2. Validate every parsed invoice
//   3. If persist is set and a sink is configured:
//      a. With validation errors and continueOnError off, nothing is
//         stored; parse and validation errors are logged and the returned
//         error is marked errors.ErrValidationFailed
//      b. Otherwise the accepted slots are stored (failed parses become log
//         rows) and validation errors are logged
//
// The returned Outcome is non-nil whenever parsing completed, including on
// validation failure and sink errors.
func (p *Pipeline) Load(ctx context.Context, text string, persist bool) (*Outcome, error) {
	ticket, err := p.parser.ParseTicketConcurrent(ctx, strings.TrimSpace(text), p.workers)
	if err != nil {
		return nil, errors.Wrap(err, "parse cancelled")
	}
	metrics.RecordTicket(ticket)

	for i, slot := range ticket.Facturas {
		if !slot.OK() {
			p.logger.Warn("invoice failed to parse",
				zap.Int("slot", i),
				zap.String("kind", slot.Err.Kind.String()),
				zap.String("message", slot.Err.Message),
			)
		}
	}

	validator := validation.NewValidatorWithOptions(p.logger, validation.Options{Workers: p.workers})
	result, err := validator.ValidateAll(ctx, ticket)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Ticket: ticket, Validation: result}
	if !persist || p.sink == nil {
		return outcome, nil
	}

	if !result.IsValid && !p.continueOnError {
		logged := make([]error, 0, len(result.Errors)+len(ticket.Failed()))
		for _, e := range ticket.Failed() {
			logged = append(logged, e)
		}
		for _, e := range result.Errors {
			logged = append(logged, e)
		}
		if err := p.sink.LogErrors(ctx, logged); err != nil {
			return outcome, errors.Wrap(err, "failed to log rejected ticket")
		}
		outcome.Stored.Logs = len(logged)
		return outcome, errors.Mark(
			errors.Newf("validation failed with %d errors", len(result.Errors)),
			errors.ErrValidationFailed,
		)
	}

	stats, err := p.sink.Store(ctx, accepted(ticket, result))
	outcome.Stored = stats
	outcome.Persisted = true
	if err != nil {
		return outcome, errors.Wrap(err, "failed to store ticket")
	}

	if len(result.Errors) > 0 {
		logged := make([]error, len(result.Errors))
		for i, e := range result.Errors {
			logged[i] = e
		}
		if err := p.sink.LogErrors(ctx, logged); err != nil {
			return outcome, errors.Wrap(err, "failed to log validation errors")
		}
		outcome.Stored.Logs += len(logged)
	}

	p.logger.Debug("ticket stored",
		zap.Int("facturas", stats.Facturas),
		zap.Int("items", stats.Items),
		zap.Int("logs", outcome.Stored.Logs),
	)
	return outcome, nil
}

// accepted drops the slots rejected by validation. Failed parses stay so
// the sink logs them.
func accepted(ticket types.Ticket, result *validation.Result) types.Ticket {
	if result.IsValid {
		return ticket
	}
	slots := make([]types.Slot, 0, len(ticket.Facturas))
	for i, slot := range ticket.Facturas {
		if slot.OK() && result.Rejected(i) {
			continue
		}
		slots = append(slots, slot)
	}
	return types.Ticket{Facturas: slots}
}
