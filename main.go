// =============================================================================
// Facturas Loader - Main Entry Point
// =============================================================================
//
// USAGE:
//   facturas process       - Load every ticket file in the input directory
//   facturas validate      - Check a ticket file without loading it
//   facturas init-db       - Create the database schema
//   facturas serve         - Accept tickets over HTTP
//   facturas layout        - Print the header column layout in use
//   facturas version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Parsing, validation, persistence and reports
//   - pkg/       : File management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/facturas-loader/cmd"
)

func main() {
	cmd.Execute()
}
