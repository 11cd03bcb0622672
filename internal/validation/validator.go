// =============================================================================
// Facturas Loader - Validation Engine
// =============================================================================
//
// The parser only checks that every line has the right shape. This module
// checks that each parsed invoice is consistent with its own trailer:
//   - Sum check:   the items' net values add up to the declared total
//   - Count check: the number of items equals the declared item count
//
// ERROR HANDLING:
//   - Errors are collected, not returned on the first failure
//   - Both checks run on every invoice, so one invoice can yield two errors
//   - Slots that failed to parse are skipped; their error is already recorded
//
// FLOATING POINT:
//   The sum is a float32 left fold starting at zero, compared with == against
//   the trailer total. There is no tolerance, so a total written with more
//   precision than float32 holds can fail the check.
//
// =============================================================================

package validation

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/metrics"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// =============================================================================
// CHECKS
// =============================================================================

// ValidateFactura runs the sum and count checks on a single invoice.
//
// PARAMETERS:
//   - f: A successfully parsed invoice.
//
// RETURNS:
//   - Zero, one or two errors, sum check first. Slot is left at zero.
func ValidateFactura(f *types.Factura) []*types.ValidationError {
	var errs []*types.ValidationError

	if sum := f.ItemsSum(); sum != f.Trailer.TotalValue {
		errs = append(errs, &types.ValidationError{
			Kind:          types.KindItemSumNotEqual,
			InvoiceNumber: f.Header.InvoiceNumber,
			Message: types.ExpectedFound(
				types.FormatAmount(f.Trailer.TotalValue),
				types.FormatAmount(sum),
			),
		})
	}

	if count := len(f.Items); uint64(count) != uint64(f.Trailer.ItemCount) {
		errs = append(errs, &types.ValidationError{
			Kind:          types.KindNotSameItems,
			InvoiceNumber: f.Header.InvoiceNumber,
			Message: types.ExpectedFound(
				strconv.FormatUint(uint64(f.Trailer.ItemCount), 10),
				strconv.Itoa(count),
			),
		})
	}

	return errs
}

// ValidateTicket checks every successfully parsed invoice of t.
//
// RETURNS:
//   - (t, nil) when every invoice is consistent.
//   - (empty Ticket, errors) otherwise, in slot order. Callers that still
//     need the ticket keep their own copy.
func ValidateTicket(t types.Ticket) (types.Ticket, []*types.ValidationError) {
	var errs []*types.ValidationError
	for i, slot := range t.Facturas {
		errs = append(errs, validateSlot(i, slot)...)
	}

	if len(errs) > 0 {
		return types.Ticket{}, errs
	}
	return t, nil
}

// validateSlot validates one slot and stamps its index on the errors.
func validateSlot(index int, slot types.Slot) []*types.ValidationError {
	if !slot.OK() {
		return nil
	}
	errs := ValidateFactura(slot.Factura)
	for _, err := range errs {
		err.Slot = index
	}
	return errs
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Result contains the results of validating one ticket.
type Result struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains every violation, in slot order.
	Errors []*types.ValidationError

	// FacturasValidated is the number of successfully parsed invoices checked.
	FacturasValidated int

	// FacturasRejected is the number of invoices with at least one error.
	FacturasRejected int
}

// Rejected reports whether the slot at index has a validation error.
func (r *Result) Rejected(index int) bool {
	for _, err := range r.Errors {
		if err.Slot == index {
			return true
		}
	}
	return false
}

// Options contains options for validation.
type Options struct {
	// Workers is the number of invoices validated in parallel.
	// Values below 2 validate sequentially. Output order never changes.
	Workers int
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{Workers: 1}
}

// Validator runs ValidateFactura over a ticket with logging and metrics.
type Validator struct {
	logger  *zap.Logger
	options Options
}

// NewValidator creates a new Validator instance.
func NewValidator(logger *zap.Logger) *Validator {
	return NewValidatorWithOptions(logger, DefaultOptions())
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(logger *zap.Logger, options Options) *Validator {
	return &Validator{
		logger:  logging.OrNop(logger),
		options: options,
	}
}

// ValidateAll validates every invoice in t and returns a detailed result.
// It only fails when ctx is cancelled.
func (v *Validator) ValidateAll(ctx context.Context, t types.Ticket) (*Result, error) {
	perSlot, err := v.run(ctx, t)
	if err != nil {
		return nil, err
	}

	result := &Result{IsValid: true}
	for i, errs := range perSlot {
		if t.Facturas[i].OK() {
			result.FacturasValidated++
		}
		if len(errs) == 0 {
			continue
		}
		result.IsValid = false
		result.FacturasRejected++
		result.Errors = append(result.Errors, errs...)

		for _, e := range errs {
			v.logger.Warn("invoice failed validation",
				zap.Int("slot", e.Slot),
				zap.Int32("invoice", e.InvoiceNumber),
				zap.String("kind", e.Kind.String()),
				zap.String("message", e.Message),
			)
		}
	}

	metrics.RecordValidation(result.Errors)
	v.logger.Debug("ticket validated",
		zap.Int("facturas", result.FacturasValidated),
		zap.Int("rejected", result.FacturasRejected),
	)
	return result, nil
}

// run validates slots on the configured number of workers. Each worker
// writes to its slot's index, so the result order matches the ticket.
func (v *Validator) run(ctx context.Context, t types.Ticket) ([][]*types.ValidationError, error) {
	perSlot := make([][]*types.ValidationError, len(t.Facturas))

	if v.options.Workers < 2 {
		for i, slot := range t.Facturas {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "validation cancelled")
			}
			perSlot[i] = validateSlot(i, slot)
		}
		return perSlot, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(v.options.Workers)
	for w := 0; w < v.options.Workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				perSlot[i] = validateSlot(i, t.Facturas[i])
			}
		}()
	}

	var cancelled error
	for i := range t.Facturas {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, errors.Wrap(cancelled, "validation cancelled")
	}
	return perSlot, nil
}
