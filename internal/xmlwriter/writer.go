// =============================================================================
// Facturas Loader - XML Writer Module
// =============================================================================
//
// This module renders a parsed ticket as an XML document, one element per
// slot in input order. Failed slots are kept in place so the document lines
// up with the input file.
//
// XML STRUCTURE:
//
//   <ticket facturas="3" failed="1">
//     <factura n="1" number="1" client="10" date="2023-01-01" currency="USD" status="valid">
//       <item n="1" id="A" age="5" quantity="2" net="10.0"/>
//       <trailer items="1" total="10.0"/>
//     </factura>
//     <error n="2" kind="CurrencyError">Expected Currency found XYZ</error>
//     <factura n="3" ... status="rejected">
//       ...
//     </factura>
//   </ticket>
//
// Item numbering is global by default (it continues across invoices).
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// Status attribute values.
const (
	StatusValid    = "valid"
	StatusRejected = "rejected"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RootAttributes are additional attributes for the root element, written
	// in key order after the counters.
	RootAttributes map[string]string

	// ItemNumberingGlobal numbers items 1, 2, 3... across all invoices.
	// When false, numbering restarts at 1 in each invoice.
	ItemNumberingGlobal bool

	// ValidationErrors marks the invoices they refer to as rejected.
	ValidationErrors []*types.ValidationError
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		RootAttributes:        make(map[string]string),
		ItemNumberingGlobal:   true,
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate creates an XML document from a ticket.
//
// PARAMETERS:
//   - ticket: The parsed ticket; every slot becomes one child of <ticket>.
//   - options: Generation options.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if generation fails.
func Generate(ticket types.Ticket, options GenerateOptions) ([]byte, error) {
	if options.Indent == "" {
		options.Indent = "  "
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	root := buildDocument(ticket, options)
	if err := writeElement(&buffer, root, options.Indent, 0); err != nil {
		return nil, errors.Wrap(err, "failed to marshal XML")
	}
	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// element is a generic XML element. Text and Children are exclusive.
type element struct {
	Name     string
	Attrs    []xml.Attr
	Text     string
	Children []element
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func uattr(name string, v uint32) xml.Attr {
	return attr(name, strconv.FormatUint(uint64(v), 10))
}

func buildDocument(ticket types.Ticket, options GenerateOptions) element {
	rejected := make(map[int]bool, len(options.ValidationErrors))
	for _, v := range options.ValidationErrors {
		rejected[v.Slot] = true
	}

	root := element{
		Name: "ticket",
		Attrs: []xml.Attr{
			attr("facturas", strconv.Itoa(ticket.Len())),
			attr("failed", strconv.Itoa(len(ticket.Failed()))),
		},
	}

	keys := make([]string, 0, len(options.RootAttributes))
	for key := range options.RootAttributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		root.Attrs = append(root.Attrs, attr(key, options.RootAttributes[key]))
	}

	itemIndex := 1
	for slot, s := range ticket.Facturas {
		n := strconv.Itoa(slot + 1)
		if !s.OK() {
			root.Children = append(root.Children, buildErrorElement(n, s.Err))
			continue
		}
		if !options.ItemNumberingGlobal {
			itemIndex = 1
		}
		root.Children = append(root.Children, buildFacturaElement(n, s.Factura, rejected[slot], &itemIndex))
	}
	return root
}

// buildFacturaElement constructs one <factura> element.
//
// STRUCTURE:
//   <factura n="1" number="1" client="10" date="2023-01-01" currency="USD" status="valid">
//     <item n="1" .../>
//     <trailer items="1" total="10.0"/>
//   </factura>
func buildFacturaElement(n string, f *types.Factura, rejected bool, itemIndex *int) element {
	status := StatusValid
	if rejected {
		status = StatusRejected
	}

	el := element{
		Name: "factura",
		Attrs: []xml.Attr{
			attr("n", n),
			attr("number", strconv.FormatInt(int64(f.Header.InvoiceNumber), 10)),
			attr("client", strconv.FormatInt(int64(f.Header.ClientID), 10)),
			attr("date", f.Header.Date.Format("2006-01-02")),
			attr("currency", f.Header.Currency.String()),
			attr("status", status),
		},
	}

	for _, item := range f.Items {
		el.Children = append(el.Children, element{
			Name: "item",
			Attrs: []xml.Attr{
				attr("n", strconv.Itoa(*itemIndex)),
				attr("id", item.ID),
				uattr("age", item.Age),
				uattr("quantity", item.Quantity),
				attr("net", types.FormatAmount(item.NetValue)),
			},
		})
		(*itemIndex)++
	}

	el.Children = append(el.Children, element{
		Name: "trailer",
		Attrs: []xml.Attr{
			uattr("items", f.Trailer.ItemCount),
			attr("total", types.FormatAmount(f.Trailer.TotalValue)),
		},
	})
	return el
}

func buildErrorElement(n string, err *types.ParseError) element {
	return element{
		Name:  "error",
		Attrs: []xml.Attr{attr("n", n), attr("kind", err.Kind.String())},
		Text:  err.Message,
	}
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// writeElement writes an element and its children with indentation.
func writeElement(buffer *bytes.Buffer, el element, indent string, level int) error {
	pad := strings.Repeat(indent, level)

	buffer.WriteString(pad)
	buffer.WriteString("<")
	buffer.WriteString(el.Name)
	for _, a := range el.Attrs {
		buffer.WriteString(" ")
		buffer.WriteString(a.Name.Local)
		buffer.WriteString(`="`)
		if err := xml.EscapeText(buffer, []byte(a.Value)); err != nil {
			return err
		}
		buffer.WriteString(`"`)
	}

	if len(el.Children) == 0 && el.Text == "" {
		buffer.WriteString("/>\n")
		return nil
	}
	buffer.WriteString(">")

	if el.Text != "" {
		if err := xml.EscapeText(buffer, []byte(el.Text)); err != nil {
			return err
		}
	} else {
		buffer.WriteString("\n")
		for _, child := range el.Children {
			if err := writeElement(buffer, child, indent, level+1); err != nil {
				return err
			}
		}
		buffer.WriteString(pad)
	}

	buffer.WriteString("</")
	buffer.WriteString(el.Name)
	buffer.WriteString(">\n")
	return nil
}

// =============================================================================
// XSD GENERATION
// =============================================================================

// GenerateXSD returns an XSD schema describing the documents Generate emits.
// The currency enumeration follows types.Currencies and the error kinds
// follow types.ErrorKinds.
func GenerateXSD() []byte {
	var buffer bytes.Buffer

	buffer.WriteString(xml.Header)
	buffer.WriteString(`<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="ticket">
    <xs:complexType>
      <xs:choice minOccurs="0" maxOccurs="unbounded">
        <xs:element ref="factura"/>
        <xs:element ref="error"/>
      </xs:choice>
      <xs:attribute name="facturas" type="xs:nonNegativeInteger" use="required"/>
      <xs:attribute name="failed" type="xs:nonNegativeInteger" use="required"/>
      <xs:anyAttribute processContents="skip"/>
    </xs:complexType>
  </xs:element>

  <xs:element name="factura">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="item" minOccurs="0" maxOccurs="unbounded">
          <xs:complexType>
            <xs:attribute name="n" type="xs:positiveInteger" use="required"/>
            <xs:attribute name="id" type="xs:string" use="required"/>
            <xs:attribute name="age" type="xs:unsignedInt" use="required"/>
            <xs:attribute name="quantity" type="xs:unsignedInt" use="required"/>
            <xs:attribute name="net" type="xs:decimal" use="required"/>
          </xs:complexType>
        </xs:element>
        <xs:element name="trailer">
          <xs:complexType>
            <xs:attribute name="items" type="xs:unsignedInt" use="required"/>
            <xs:attribute name="total" type="xs:decimal" use="required"/>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
      <xs:attribute name="n" type="xs:positiveInteger" use="required"/>
      <xs:attribute name="number" type="xs:int" use="required"/>
      <xs:attribute name="client" type="xs:int" use="required"/>
      <xs:attribute name="date" type="xs:date" use="required"/>
      <xs:attribute name="currency" type="currency" use="required"/>
      <xs:attribute name="status" type="status" use="required"/>
    </xs:complexType>
  </xs:element>

  <xs:element name="error">
    <xs:complexType>
      <xs:simpleContent>
        <xs:extension base="xs:string">
          <xs:attribute name="n" type="xs:positiveInteger" use="required"/>
          <xs:attribute name="kind" type="errorKind" use="required"/>
        </xs:extension>
      </xs:simpleContent>
    </xs:complexType>
  </xs:element>

`)

	writeEnumeration(&buffer, "currency", currencyNames())
	writeEnumeration(&buffer, "status", []string{StatusValid, StatusRejected})
	writeEnumeration(&buffer, "errorKind", errorKindNames())

	buffer.WriteString("</xs:schema>\n")
	return buffer.Bytes()
}

func writeEnumeration(buffer *bytes.Buffer, name string, values []string) {
	fmt.Fprintf(buffer, "  <xs:simpleType name=%q>\n", name)
	buffer.WriteString("    <xs:restriction base=\"xs:string\">\n")
	for _, v := range values {
		fmt.Fprintf(buffer, "      <xs:enumeration value=%q/>\n", v)
	}
	buffer.WriteString("    </xs:restriction>\n")
	buffer.WriteString("  </xs:simpleType>\n\n")
}

func currencyNames() []string {
	names := make([]string, len(types.Currencies))
	for i, c := range types.Currencies {
		names[i] = c.String()
	}
	return names
}

func errorKindNames() []string {
	names := make([]string, len(types.ErrorKinds))
	for i, k := range types.ErrorKinds {
		names[i] = k.String()
	}
	return names
}
