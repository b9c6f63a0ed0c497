package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "no trigger passes through",
			query: "what is the refund policy",
			want:  "what is the refund policy",
		},
		{
			name:  "account number expands",
			query: "find the account number",
			want:  `find the account number OR "account no" OR "acct no" OR "account #"`,
		},
		{
			name:  "case insensitive trigger",
			query: "Account Number for J. Smith",
			want:  `Account Number for J. Smith OR "account no" OR "acct no" OR "account #"`,
		},
		{
			name:  "synonym already present is not repeated",
			query: "cheque or check amount",
			want:  "cheque or check amount",
		},
		{
			name:  "multiple triggers expand in trigger order",
			query: "invoice number and purchase order",
			want:  `invoice number and purchase order OR "invoice no" OR "invoice #" OR "inv no" OR "po number" OR "p.o."`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandQuery(tt.query))
		})
	}
}

func TestExpandQueryDeterministic(t *testing.T) {
	query := "invoice number and account number"
	first := ExpandQuery(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ExpandQuery(query))
	}
}
