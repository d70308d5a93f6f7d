package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "date,description,transaction_type,amount,balance,currency"

func TestParseRecords(t *testing.T) {
	text := header + "\n" +
		"2024-01-05,\"Salary, January\",credit,1000,1000,USD\n" +
		"\n" +
		"  2024-01-20,\"Rent\",debit,400,600,USD  \r\n"

	records, err := ParseRecords(text)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		"date":             "2024-01-05",
		"description":      "Salary, January",
		"transaction_type": "credit",
		"amount":           "1000",
		"balance":          "1000",
		"currency":         "USD",
	}, records[0])
	assert.Equal(t, "Rent", records[1]["description"])
}

func TestParseRecords_QuoteRoundTrip(t *testing.T) {
	text := header + "\n" + `2024-01-05,"He said ""Hello, world!""",debit,1,1,GBP`

	records, err := ParseRecords(text)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, `He said "Hello, world!"`, records[0]["description"])
}

func TestParseRecords_BareQuoteInUnquotedField(t *testing.T) {
	text := header + "\n" +
		`2024-01-05,Salary ACME 5" display,credit,1000,1000,USD` + "\n" +
		`2024-01-20,"Rent",debit,400,600,USD`

	records, err := ParseRecords(text)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `Salary ACME 5" display`, records[0]["description"])
	assert.Equal(t, "credit", records[0]["transaction_type"])
	assert.Equal(t, "1000", records[0]["amount"])
	assert.Equal(t, "Rent", records[1]["description"])
}

func TestParseRecords_HeaderNormalized(t *testing.T) {
	text := " Date , Description,Transaction_Type,AMOUNT,balance,Currency\n2024-01-05,x,credit,1,2,USD"

	records, err := ParseRecords(text)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-05", records[0]["date"])
	assert.Equal(t, "USD", records[0]["currency"])
}

func TestParseRecords_SkipsMalformedLines(t *testing.T) {
	text := header + "\n" +
		"2024-01-05,ok,credit,1,1,USD\n" +
		"2024-01-06,too,few\n" +
		"2024-01-07,\"unterminated,debit,1,1,USD\n" +
		"2024-01-08,too,many,1,1,USD,extra\n" +
		"2024-01-09,also ok,debit,2,3,USD\n"

	var skipped []int
	records, err := parseRecords(text, func(line int, err error) {
		skipped = append(skipped, line)
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "also ok", records[1]["description"])
	assert.Equal(t, []int{3, 4, 5}, skipped)
}

func TestParseRecords_HeaderOnly(t *testing.T) {
	records, err := ParseRecords(header + "\n")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestParseRecords_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "blank lines", text: "\n  \n"},
		{name: "prose", text: "I could not find any transactions in this statement."},
		{name: "missing columns", text: "date,description,amount\n2024-01-01,x,1"},
		{name: "broken header", text: "\"date,description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRecords(tt.text)
			assert.ErrorIs(t, err, ErrMissingHeader)
			assert.Nil(t, records)
		})
	}
}
