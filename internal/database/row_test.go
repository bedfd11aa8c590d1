package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemasql/internal/errs"
)

// fakeRows replays canned rows through the Rows interface.
type fakeRows struct {
	cols    []string
	data    [][]any
	pos     int
	iterErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Close()                     { r.closed = true }
func (r *fakeRows) Err() error                 { return r.iterErr }

func TestScanRows(t *testing.T) {
	rows := &fakeRows{
		cols: []string{"id", "name", "price"},
		data: [][]any{
			{int64(1), []byte("Rex"), []byte("12.50")},
			{int64(2), "Tom", nil},
		},
	}

	records, err := ScanRows(rows)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Record{"id": int64(1), "name": "Rex", "price": "12.50"}, records[0])
	assert.Equal(t, Record{"id": int64(2), "name": "Tom", "price": nil}, records[1])
	assert.True(t, rows.closed)
}

func TestScanRows_EmptyIsNonNil(t *testing.T) {
	records, err := ScanRows(&fakeRows{cols: []string{"id"}})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestScanRows_IterationError(t *testing.T) {
	rows := &fakeRows{cols: []string{"id"}, iterErr: errors.New("connection reset")}
	_, err := ScanRows(rows)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.True(t, rows.closed)
}
