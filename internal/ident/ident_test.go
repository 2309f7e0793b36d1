package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		input    string
		expected string
	}{
		{"mysql_simple", MySQL, "users", "`users`"},
		{"mysql_with_backtick", MySQL, "u`sers", "`u``sers`"},
		{"postgres_simple", PostgreSQL, "users", `"users"`},
		{"postgres_with_quote", PostgreSQL, `u"sers`, `"u""sers"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Quote(tt.dialect, tt.input))
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, "`db`.`tbl`", QuoteQualified(MySQL, "db", "tbl"))
	assert.Equal(t, `"db"."tbl"`, QuoteQualified(PostgreSQL, "db", "tbl"))
}

func TestQuoteTable(t *testing.T) {
	tbl := Table{Schema: "db", Name: "tbl"}
	assert.Equal(t, "`db`.`tbl`", QuoteTable(MySQL, tbl))
	assert.Equal(t, "db.tbl", tbl.String())
}

func TestQuoteCols(t *testing.T) {
	got := QuoteCols(MySQL, []string{"a", "b", "c"})
	assert.Equal(t, []string{"`a`", "`b`", "`c`"}, got)
}
