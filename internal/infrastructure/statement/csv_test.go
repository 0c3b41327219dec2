package statement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVReader_Parse(t *testing.T) {
	t.Run("parses a well-formed statement export", func(t *testing.T) {
		csv := "document_type,account_code,account_name,amount\n" +
			"balance_sheet,1000,Cash and Equivalents,\"$1,234.56\"\n" +
			"income_statement,,Net Income,(571883.75)\n" +
			"cash_flow,,Cash at End of Period,500000.00\n"

		result, err := NewCSVReader().Parse(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, result.Lines, 3)
		assert.Empty(t, result.Errors)

		assert.Equal(t, "balance_sheet", result.Lines[0].DocumentType)
		assert.Equal(t, "1000", result.Lines[0].AccountCode)
		assert.Equal(t, "1234.56", result.Lines[0].Amount.String())
		assert.Equal(t, "-571883.75", result.Lines[1].Amount.String())
	})

	t.Run("recognizes header aliases", func(t *testing.T) {
		csv := "Statement,Account,Balance\n" +
			"balance_sheet,Cash,12.50\n"

		result, err := NewCSVReader().Parse(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, result.Lines, 1)
		assert.Equal(t, "Cash", result.Lines[0].AccountName)
	})

	t.Run("strips a UTF-8 BOM", func(t *testing.T) {
		csv := "\xEF\xBB\xBFaccount_name,amount\nCash,1.00\n"

		result, err := NewCSVReader(WithDefaultDocumentType("balance_sheet")).
			Parse(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, result.Lines, 1)
	})

	t.Run("folds document type spellings", func(t *testing.T) {
		csv := "document_type,account_name,amount\n" +
			"P&L,Net Income,10.00\n" +
			"Balance Sheet,Cash,20.00\n" +
			"CF,Ending Cash,30.00\n"

		result, err := NewCSVReader().Parse(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, result.Lines, 3)
		assert.Equal(t, "income_statement", result.Lines[0].DocumentType)
		assert.Equal(t, "balance_sheet", result.Lines[1].DocumentType)
		assert.Equal(t, "cash_flow", result.Lines[2].DocumentType)
	})

	t.Run("collects row errors without aborting", func(t *testing.T) {
		csv := "document_type,account_name,amount\n" +
			"balance_sheet,Cash,not-a-number\n" +
			"ledger,Cash,1.00\n" +
			"balance_sheet,,1.00\n" +
			"balance_sheet,Cash,2.00\n"

		result, err := NewCSVReader().Parse(strings.NewReader(csv))
		require.NoError(t, err)
		assert.Len(t, result.Lines, 1)
		require.Len(t, result.Errors, 3)
		assert.Equal(t, 2, result.Errors[0].Line)
		assert.Equal(t, "amount", result.Errors[0].Column)
		assert.Equal(t, "document_type", result.Errors[1].Column)
		assert.Equal(t, "account_name", result.Errors[2].Column)
	})

	t.Run("skips blank rows", func(t *testing.T) {
		csv := "account_name,amount\nCash,1.00\n,\n"

		result, err := NewCSVReader(WithDefaultDocumentType("balance_sheet")).
			Parse(strings.NewReader(csv))
		require.NoError(t, err)
		assert.Len(t, result.Lines, 1)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("rejects files without a usable header", func(t *testing.T) {
		_, err := NewCSVReader().Parse(strings.NewReader("foo,bar\n1,2\n"))
		assert.ErrorIs(t, err, ErrMissingHeader)
	})

	t.Run("rejects an empty file", func(t *testing.T) {
		_, err := NewCSVReader().Parse(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("rejects non-UTF-8 content", func(t *testing.T) {
		_, err := NewCSVReader().Parse(strings.NewReader("account_name,amount\n\xFF\xFE,1\n"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1234.56", want: "1234.56"},
		{in: "$1,234.56", want: "1234.56"},
		{in: "(500.00)", want: "-500"},
		{in: "($2,000.00)", want: "-2000"},
		{in: "-15.25", want: "-15.25"},
		{in: "", wantErr: true},
		{in: "N/A", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseAmount(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}
