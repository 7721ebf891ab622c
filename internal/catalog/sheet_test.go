package catalog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

func TestParseSheet_Comma(t *testing.T) {
	input := "Roriri Cafe menu\n\nName,Price,Stock,Category,Min Stock\n" +
		"Masala Dosa,55.00,20,Breakfast,5\n" +
		"Filter Coffee,15,100,Beverages,\n" +
		"\n" +
		"Samosa,abc,10,Snacks,2\n" +
		",10.00,1,,\n"

	sheet, err := catalog.ParseSheet(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Masala Dosa", sheet.Rows[0].Params.Name)
	assert.Equal(t, money.MustParse("55.00"), sheet.Rows[0].Params.Price)
	assert.Equal(t, int64(20), sheet.Rows[0].Params.Stock)
	assert.Equal(t, int64(5), sheet.Rows[0].Params.MinStock)
	assert.Equal(t, 4, sheet.Rows[0].Row)

	assert.Equal(t, "Beverages", sheet.Rows[1].Params.Category)
	assert.Equal(t, int64(0), sheet.Rows[1].Params.MinStock)

	require.Len(t, sheet.Invalid, 2)
	assert.Equal(t, 7, sheet.Invalid[0].Row)
	assert.Contains(t, sheet.Invalid[0].Reason, "price")
	assert.Equal(t, 8, sheet.Invalid[1].Row)
}

func TestParseSheet_SemicolonWithDecimalComma(t *testing.T) {
	input := "name;price;stock\nIdli;30,50;12\nVada;12.5;4\n"

	sheet, err := catalog.ParseSheet(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "30.50", sheet.Rows[0].Params.Price.String())
	assert.Equal(t, "12.50", sheet.Rows[1].Params.Price.String())
	assert.Equal(t, catalog.DefaultCategory, sheet.Rows[0].Params.Category)
}

func TestParseSheet_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "too precise", input: "name,price\nTea,10.005\n", reason: "precision"},
		{name: "negative stock", input: "name,price,stock\nTea,10,-1\n", reason: "stock"},
		{name: "fractional stock", input: "name,price,stock\nTea,10,1.5\n", reason: "whole number"},
		{name: "zero price", input: "name,price\nTea,0\n", reason: "positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := catalog.ParseSheet(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Empty(t, sheet.Rows)
			require.Len(t, sheet.Invalid, 1)
			assert.Contains(t, sheet.Invalid[0].Reason, tt.reason)
		})
	}
}

func TestParseSheet_NoHeader(t *testing.T) {
	_, err := catalog.ParseSheet(strings.NewReader("just,some,values\n1,2,3\n"))
	assert.ErrorIs(t, err, catalog.ErrNoHeader)
}
