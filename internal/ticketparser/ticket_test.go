package ticketparser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

func invoiceText(number string, currency string, items []string, trailer string) string {
	lines := []string{headerLine(number, "010", "20230101", currency)}
	lines = append(lines, items...)
	lines = append(lines, trailer)
	return strings.Join(lines, "\n")
}

func TestSplit(t *testing.T) {
	text := strings.Join([]string{
		headerLine("00001", "010", "20230101", "USD"),
		"I1 5 2 10.0",
		"T 1 10.0",
		headerLine("00002", "010", "20230101", "USD"),
		"T 0 0.0",
	}, "\n")

	chunks := Split(text)
	require.Len(t, chunks.Complete, 2)
	assert.Len(t, chunks.Complete[0], 3)
	assert.Len(t, chunks.Complete[1], 2)
	assert.Nil(t, chunks.Trailing)
}

func TestSplitIgnoresBlankTail(t *testing.T) {
	text := invoiceText("00001", "USD", nil, "T 0 0.0") + "\n\n  \n"

	chunks := Split(text)
	require.Len(t, chunks.Complete, 1)
	assert.Nil(t, chunks.Trailing)
}

func TestSplitKeepsUnterminatedTail(t *testing.T) {
	text := invoiceText("00001", "USD", nil, "T 0 0.0") + "\n" +
		headerLine("00002", "010", "20230101", "USD") + "\nI1 5 2 10.0\n"

	chunks := Split(text)
	require.Len(t, chunks.Complete, 1)
	assert.Equal(t, []string{headerLine("00002", "010", "20230101", "USD"), "I1 5 2 10.0"}, chunks.Trailing)
}

func TestSplitEmptyText(t *testing.T) {
	chunks := Split("")
	assert.Empty(t, chunks.Complete)
	assert.Nil(t, chunks.Trailing)

	ticket := ParseTicket("")
	assert.Equal(t, 0, ticket.Len())
}

func TestParseTicketSingleInvoice(t *testing.T) {
	text := strings.Join([]string{
		"H   00001 010  20230101USD",
		"I1 5 2 10.0",
		"T 1 10.0",
	}, "\n")

	ticket := ParseTicket(text)
	require.Equal(t, 1, ticket.Len())
	require.True(t, ticket.Facturas[0].OK())

	factura := ticket.Facturas[0].Factura
	assert.Equal(t, int32(1), factura.Header.InvoiceNumber)
	assert.Equal(t, int32(10), factura.Header.ClientID)
	assert.Equal(t, []types.Item{{ID: "1", Age: 5, Quantity: 2, NetValue: 10.0}}, factura.Items)
	assert.Equal(t, types.Trailer{ItemCount: 1, TotalValue: 10.0}, factura.Trailer)
}

func TestParseTicketTwoTokenTrailer(t *testing.T) {
	text := invoiceText("00001", "USD", []string{"I1 5 2 10.0"}, "T 1")

	ticket := ParseTicket(text)
	require.Equal(t, 1, ticket.Len())
	require.NotNil(t, ticket.Facturas[0].Err)
	assert.Equal(t, types.KindTrailerError, ticket.Facturas[0].Err.Kind)
	assert.Equal(t, "Expected 3 arguments found 2 in Trailer", ticket.Facturas[0].Err.Message)
}

func TestParseTicketFailureIsIsolated(t *testing.T) {
	text := strings.Join([]string{
		invoiceText("00001", "USD", []string{"I1 5 2 10.0"}, "T 1 10.0"),
		invoiceText("00002", "MXN", []string{"I1 1 1 1.5", "I2 1 1 2.5"}, "T 2 4.0"),
		invoiceText("00003", "XYZ", []string{"I1 5 2 10.0"}, "T 1 10.0"),
	}, "\n")

	ticket := ParseTicket(text)
	require.Equal(t, 3, ticket.Len())

	assert.True(t, ticket.Facturas[0].OK())
	assert.True(t, ticket.Facturas[1].OK())
	assert.Equal(t, int32(1), ticket.Facturas[0].Factura.Header.InvoiceNumber)
	assert.Equal(t, int32(2), ticket.Facturas[1].Factura.Header.InvoiceNumber)

	require.NotNil(t, ticket.Facturas[2].Err)
	assert.Nil(t, ticket.Facturas[2].Factura)
	assert.Equal(t, types.KindCurrencyError, ticket.Facturas[2].Err.Kind)

	assert.Len(t, ticket.Succeeded(), 2)
	assert.Len(t, ticket.Failed(), 1)
}

func TestParseTicketConcatenationKeepsOrder(t *testing.T) {
	good := invoiceText("00001", "USD", []string{"I1 5 2 10.0"}, "T 1 10.0")
	bad := invoiceText("00002", "USD", []string{"I1 5 2"}, "T 1 10.0")
	empty := invoiceText("00003", "EUR", nil, "T 0 0.0")

	parts := []string{good, bad, empty, good}
	separate := make([]types.Slot, 0, len(parts))
	for _, part := range parts {
		separate = append(separate, ParseTicket(part).Facturas...)
	}

	joined := ParseTicket(strings.Join(parts, "\n"))
	assert.Equal(t, separate, joined.Facturas)
}

func TestParseTicketUnterminatedTail(t *testing.T) {
	text := invoiceText("00001", "USD", []string{"I1 5 2 10.0"}, "T 1 10.0") + "\n" +
		headerLine("00002", "010", "20230101", "USD") + "\nI1 5 2 10.0\nI2 5 2 10.0"

	ticket := ParseTicket(text)
	require.Equal(t, 2, ticket.Len())
	assert.True(t, ticket.Facturas[0].OK())

	require.NotNil(t, ticket.Facturas[1].Err)
	assert.Equal(t, types.KindFacturaError, ticket.Facturas[1].Err.Kind)
	assert.Equal(t, "Expected trailer found end of input after 3 lines in Factura", ticket.Facturas[1].Err.Message)
}

func TestParseTicketCRLF(t *testing.T) {
	text := strings.Join([]string{
		headerLine("00001", "010", "20230101", "USD"),
		"I1 5 2 10.0",
		"T 1 10.0",
		"",
	}, "\r\n")

	ticket := ParseTicket(text)
	require.Equal(t, 1, ticket.Len())
	require.True(t, ticket.Facturas[0].OK(), "%v", ticket.Facturas[0].Err)
	assert.Equal(t, types.CurrencyUSD, ticket.Facturas[0].Factura.Header.Currency)
	assert.Equal(t, float32(10.0), ticket.Facturas[0].Factura.Trailer.TotalValue)
}

func TestParseTicketBlankLineBeforeHeader(t *testing.T) {
	text := invoiceText("00001", "USD", nil, "T 0 0.0") + "\n\n" +
		invoiceText("00002", "USD", nil, "T 0 0.0")

	ticket := ParseTicket(text)
	require.Equal(t, 2, ticket.Len())
	assert.True(t, ticket.Facturas[0].OK())
	require.NotNil(t, ticket.Facturas[1].Err)
	assert.Equal(t, types.KindHeaderError, ticket.Facturas[1].Err.Kind)
}

func TestParseTicketConcurrentMatchesSequential(t *testing.T) {
	var parts []string
	for i := 1; i <= 50; i++ {
		currency := "USD"
		if i%7 == 0 {
			currency = "GBP"
		}
		items := []string{fmt.Sprintf("I%d 1 1 %d.5", i, i)}
		parts = append(parts, invoiceText(fmt.Sprintf("%05d", i), currency, items, fmt.Sprintf("T 1 %d.5", i)))
	}
	text := strings.Join(parts, "\n") + "\n" + headerLine("00051", "010", "20230101", "USD")

	parser := Default()
	want := parser.ParseTicket(text)

	for _, workers := range []int{0, 1, 2, 4, 16} {
		got, err := parser.ParseTicketConcurrent(context.Background(), text, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestParseTicketConcurrentCancelled(t *testing.T) {
	text := invoiceText("00001", "USD", nil, "T 0 0.0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Default().ParseTicketConcurrent(ctx, text, 4)
	assert.ErrorIs(t, err, context.Canceled)
}
