package statement

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/reims/backend/internal/domain/reconciliation"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")
	ErrMissingHeader   = errors.New("header row is missing")
)

// headerAliases maps the column names seen in exported statements to the
// canonical column set. Keys are lowercased.
var headerAliases = map[string]string{
	"document_type": "document_type",
	"document":      "document_type",
	"statement":     "document_type",
	"account_code":  "account_code",
	"code":          "account_code",
	"gl code":       "account_code",
	"account_name":  "account_name",
	"account":       "account_name",
	"description":   "account_name",
	"line item":     "account_name",
	"amount":        "amount",
	"balance":       "amount",
	"value":         "amount",
}

// Line is one parsed statement row.
type Line struct {
	DocumentType string
	AccountCode  string
	AccountName  string
	Amount       decimal.Decimal
}

// RowError describes why one row was rejected. Line numbers are 1-based and
// include the header.
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Line, e.Message)
}

// ParseResult is the outcome of parsing one statement file. Rows that fail
// validation are reported in Errors and excluded from Lines.
type ParseResult struct {
	Lines   []Line
	Errors  []RowError
	Skipped int
}

// CSVReader parses exported statement CSVs. It tolerates UTF-8 BOMs, header
// name variants, currency symbols, thousands separators, and accounting-style
// parenthesized negatives.
type CSVReader struct {
	defaultDocumentType string
	maxRows             int
}

type CSVOption func(*CSVReader)

// WithDefaultDocumentType supplies the document type for files whose rows
// carry none, e.g. a single-statement export.
func WithDefaultDocumentType(docType string) CSVOption {
	return func(r *CSVReader) {
		r.defaultDocumentType = docType
	}
}

// WithMaxRows caps how many data rows are read.
func WithMaxRows(n int) CSVOption {
	return func(r *CSVReader) {
		r.maxRows = n
	}
}

func NewCSVReader(opts ...CSVOption) *CSVReader {
	reader := &CSVReader{maxRows: 100000}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Parse reads the whole file. An error return means the file itself is
// unusable; per-row problems go into the result instead.
func (r *CSVReader) Parse(src io.Reader) (*ParseResult, error) {
	buf := bufio.NewReader(src)
	if err := stripBOM(buf); err != nil {
		return nil, err
	}
	if err := checkUTF8(buf); err != nil {
		return nil, err
	}

	cr := csv.NewReader(buf)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	columns, err := r.readHeader(cr)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Message: "malformed CSV row"})
			continue
		}
		if len(result.Lines) >= r.maxRows {
			result.Skipped++
			continue
		}
		if isBlank(record) {
			result.Skipped++
			continue
		}
		parsed, rowErrs := r.parseRow(line, columns, record)
		if len(rowErrs) > 0 {
			result.Errors = append(result.Errors, rowErrs...)
			continue
		}
		result.Lines = append(result.Lines, parsed)
	}

	if len(result.Lines) == 0 && len(result.Errors) == 0 {
		return nil, ErrEmptyFile
	}
	return result, nil
}

// readHeader maps canonical column names to field indexes.
func (r *CSVReader) readHeader(cr *csv.Reader) (map[string]int, error) {
	record, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(record))
	for i, raw := range record {
		name := strings.ToLower(strings.TrimSpace(raw))
		if canonical, ok := headerAliases[name]; ok {
			if _, dup := columns[canonical]; !dup {
				columns[canonical] = i
			}
		}
	}

	if _, ok := columns["account_name"]; !ok {
		return nil, fmt.Errorf("%w: no account name column recognized", ErrMissingHeader)
	}
	if _, ok := columns["amount"]; !ok {
		return nil, fmt.Errorf("%w: no amount column recognized", ErrMissingHeader)
	}
	return columns, nil
}

func (r *CSVReader) parseRow(line int, columns map[string]int, record []string) (Line, []RowError) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var errs []RowError

	docType := field("document_type")
	if docType == "" {
		docType = r.defaultDocumentType
	}
	docType = normalizeDocumentType(docType)
	if !reconciliation.DocumentType(docType).IsValid() {
		errs = append(errs, RowError{Line: line, Column: "document_type",
			Message: "unknown document type " + docType})
	}

	name := field("account_name")
	if name == "" {
		errs = append(errs, RowError{Line: line, Column: "account_name", Message: "account name is required"})
	}

	amount, err := parseAmount(field("amount"))
	if err != nil {
		errs = append(errs, RowError{Line: line, Column: "amount", Message: err.Error()})
	}

	if len(errs) > 0 {
		return Line{}, errs
	}
	return Line{
		DocumentType: docType,
		AccountCode:  field("account_code"),
		AccountName:  name,
		Amount:       amount,
	}, nil
}

// normalizeDocumentType folds the spellings seen in exports onto the stored
// document type identifiers.
func normalizeDocumentType(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "bs":
		return "balance_sheet"
	case "is", "p&l", "pnl", "profit_and_loss":
		return "income_statement"
	case "cf", "statement_of_cash_flows":
		return "cash_flow"
	}
	return s
}

// parseAmount accepts "$1,234.56", "(500.00)" and plain decimals.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errors.New("amount is required")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	s = strings.ReplaceAll(s, ",", "")

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

func stripBOM(buf *bufio.Reader) error {
	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading file: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}
	return nil
}

func checkUTF8(buf *bufio.Reader) error {
	const window = 4096
	head, err := buf.Peek(window)
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading file: %w", err)
	}
	if len(head) == 0 {
		return ErrEmptyFile
	}
	// A multi-byte rune split at the window boundary is not an encoding error.
	end := len(head)
	if end == window {
		for end > 0 && !utf8.RuneStart(head[end-1]) {
			end--
		}
		if end > 0 {
			end--
		}
	}
	if !utf8.Valid(head[:end]) {
		return ErrInvalidEncoding
	}
	return nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
