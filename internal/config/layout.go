package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/ticketparser"
)

// layoutFile is the on-disk shape of a header layout:
//
//	header:
//	  invoice_number: {start: 4, end: 8}
//	  client_id:      {start: 10, end: 12}
//	  date:           {start: 15, end: 22}
//	  currency:       {start: 23, end: -1}
type layoutFile struct {
	Header ticketparser.Layout `yaml:"header"`
}

// LoadLayout reads a header layout from a YAML file.
//
// PARAMETERS:
//   - path: The layout file. An empty path returns the default layout.
//
// RETURNS:
//   - The validated layout.
//   - An error if the file cannot be read, parsed or validated.
func LoadLayout(path string) (ticketparser.Layout, error) {
	if path == "" {
		return ticketparser.DefaultLayout(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ticketparser.Layout{}, errors.Wrapf(err, "failed to read layout file %s", path)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates a YAML layout document.
func ParseLayout(data []byte) (ticketparser.Layout, error) {
	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ticketparser.Layout{}, errors.Wrap(err, "failed to parse layout")
	}

	if err := file.Header.Validate(); err != nil {
		return ticketparser.Layout{}, errors.Wrap(err, "invalid layout")
	}
	return file.Header, nil
}

// MarshalLayout renders a layout in the format LoadLayout reads.
func MarshalLayout(layout ticketparser.Layout) ([]byte, error) {
	return yaml.Marshal(layoutFile{Header: layout})
}
