package legacy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "c-2023-02": {
    "accounts": [{"id": "A2", "name": "Savings"}, {"id": "A1", "name": "Checking (old)"}],
    "transactions": [
      {"id": "t3", "concept": "(-)RENT", "description": "", "amount": "-800", "accountId": "A1", "timestamp": 1675209600000}
    ]
  },
  "c-2023-01": {
    "accounts": [{"id": "A1", "name": "Checking"}],
    "transactions": [
      {"id": "t1", "concept": "(+)SALARY", "description": "Payroll", "amount": 1500, "accountId": "A1", "timestamp": 1672531200000},
      {"id": "t2", "concept": "", "description": "move", "amount": 20, "accountId": "A1", "transferId": "x1"}
    ]
  },
  "c-broken": {"accounts": {"not": "a list"}, "transactions": null}
}`

func TestParse_PreservesClosureOrder(t *testing.T) {
	ds, err := Parse([]byte(sampleExport))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	assert.Equal(t, "c-2023-02", ds.Closures[0].ID)
	assert.Equal(t, "c-2023-01", ds.Closures[1].ID)
	assert.Equal(t, "c-broken", ds.Closures[2].ID)

	assert.Empty(t, ds.Closures[2].Accounts)
	assert.Empty(t, ds.Closures[2].Transactions)
}

func TestParse_Transactions(t *testing.T) {
	ds, err := Parse([]byte(sampleExport))
	require.NoError(t, err)

	var ids []string
	ds.Transactions(func(c *Closure, tx *Transaction) {
		ids = append(ids, c.ID+"/"+tx.ID)
	})
	assert.Equal(t, []string{"c-2023-02/t3", "c-2023-01/t1", "c-2023-01/t2"}, ids)

	salary := ds.Closures[1].Transactions[0]
	require.NotNil(t, salary.Timestamp)
	assert.Equal(t, int64(1672531200000), *salary.Timestamp)
	assert.True(t, salary.HasIncomeMarker())
	assert.Equal(t, "SALARY", salary.CleanConcept())
	assert.False(t, salary.IsTransfer())

	transfer := ds.Closures[1].Transactions[1]
	assert.True(t, transfer.IsTransfer())
	assert.Nil(t, transfer.Timestamp)
}

func TestParse_RejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}

func TestParse_NullExport(t *testing.T) {
	ds, err := Parse([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestCleanConcept(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"(+)SALARY", "SALARY"},
		{"(-) RENT ", "RENT"},
		{"FOOD", "FOOD"},
		{"(+)(-)", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanConcept(tt.input))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "integer", raw: `{"amount": 1500}`, want: "1500"},
		{name: "negative float", raw: `{"amount": -4.5}`, want: "-4.5"},
		{name: "numeric string", raw: `{"amount": " 12.30 "}`, want: "12.3"},
		{name: "exponent", raw: `{"amount": 1e2}`, want: "100"},
		{name: "zero stays valid here", raw: `{"amount": 0}`, want: "0"},
		{name: "absent", raw: `{}`, wantErr: ErrMissingAmount},
		{name: "null", raw: `{"amount": null}`, wantErr: ErrMissingAmount},
		{name: "garbage string", raw: `{"amount": "abc"}`, wantErr: ErrInvalidAmount},
		{name: "empty string", raw: `{"amount": ""}`, wantErr: ErrInvalidAmount},
		{name: "bool", raw: `{"amount": true}`, wantErr: ErrInvalidAmount},
		{name: "object", raw: `{"amount": {"v": 1}}`, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tx Transaction
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &tx))

			got, err := ParseAmount(tx.Amount)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got error %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNewRawAmount(t *testing.T) {
	got, err := ParseAmount(NewRawAmount(-4.5))
	require.NoError(t, err)
	assert.Equal(t, "-4.5", got.String())

	got, err = ParseAmount(NewRawAmount(1500))
	require.NoError(t, err)
	assert.Equal(t, "1500", got.String())

	_, err = ParseAmount(NewRawAmount("abc"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.True(t, NewRawAmount(nil).IsMissing())
	assert.Equal(t, "string", NewRawAmount("abc").TypeName())
}

func TestTransaction_LooseFields(t *testing.T) {
	ms := func(n int64) *int64 { return &n }

	tests := []struct {
		name string
		raw  string
		want Transaction
	}{
		{
			name: "numeric concept",
			raw:  `{"id": "t1", "concept": 123, "accountId": "A1"}`,
			want: Transaction{ID: "t1", Concept: "123", AccountID: "A1"},
		},
		{
			name: "numeric ids",
			raw:  `{"id": 7, "accountId": 1, "transferId": 42}`,
			want: Transaction{ID: "7", AccountID: "1", TransferID: "42"},
		},
		{
			name: "non-string description",
			raw:  `{"id": "t1", "description": {"text": "x"}, "concept": true}`,
			want: Transaction{ID: "t1"},
		},
		{
			name: "float timestamp",
			raw:  `{"id": "t1", "timestamp": 1672531200000.0}`,
			want: Transaction{ID: "t1", Timestamp: ms(1672531200000)},
		},
		{
			name: "exponent timestamp",
			raw:  `{"id": "t1", "timestamp": 1.6725312e12}`,
			want: Transaction{ID: "t1", Timestamp: ms(1672531200000)},
		},
		{
			name: "numeric string timestamp",
			raw:  `{"id": "t1", "timestamp": " 1672531200000 "}`,
			want: Transaction{ID: "t1", Timestamp: ms(1672531200000)},
		},
		{
			name: "fractional timestamp",
			raw:  `{"id": "t1", "timestamp": 1672531200000.5}`,
			want: Transaction{ID: "t1"},
		},
		{
			name: "garbage timestamp",
			raw:  `{"id": "t1", "timestamp": "yesterday"}`,
			want: Transaction{ID: "t1"},
		},
		{
			name: "object timestamp",
			raw:  `{"id": "t1", "timestamp": {"seconds": 1}}`,
			want: Transaction{ID: "t1"},
		},
		{
			name: "not an object",
			raw:  `"t1"`,
			want: Transaction{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tx Transaction
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &tx))
			assert.Equal(t, tt.want, tx)
		})
	}
}

func TestParse_LooseFieldsKeepExport(t *testing.T) {
	ds, err := Parse([]byte(`{
	  "c1": {
	    "accounts": [{"id": 1, "name": "Checking"}, {"id": "A2", "name": null}],
	    "transactions": [
	      {"id": 7, "concept": 123, "amount": -10, "accountId": 1, "timestamp": 1672531200000.0},
	      {"id": "t2", "concept": "(+)SALARY", "amount": 100, "accountId": "A2", "timestamp": "bad"}
	    ]
	  }
	}`))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	c := ds.Closures[0]
	assert.Equal(t, []Account{{ID: "1", Name: "Checking"}, {ID: "A2"}}, c.Accounts)
	require.Len(t, c.Transactions, 2)

	odd := c.Transactions[0]
	assert.Equal(t, "7", odd.ID)
	assert.Equal(t, "123", odd.CleanConcept())
	assert.Equal(t, "1", odd.AccountID)
	require.NotNil(t, odd.Timestamp)
	assert.Equal(t, int64(1672531200000), *odd.Timestamp)

	assert.Nil(t, c.Transactions[1].Timestamp)
	assert.Equal(t, "SALARY", c.Transactions[1].CleanConcept())
}
