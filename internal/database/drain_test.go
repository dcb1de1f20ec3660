package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceIter yields the ints in rows.
type sliceIter struct {
	rows []int
	pos  int
	err  error
}

func (s *sliceIter) Next() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIter) Scan(dest ...any) error {
	*dest[0].(*int) = s.rows[s.pos-1]
	return nil
}

func (s *sliceIter) Err() error { return s.err }

func collect(into *[]int, cutAt int) Sink {
	return func(row Scanner) (bool, error) {
		var v int
		if err := row.Scan(&v); err != nil {
			return false, err
		}
		*into = append(*into, v)
		return v == cutAt, nil
	}
}

func TestDrain_Batches(t *testing.T) {
	it := &sliceIter{rows: []int{1, 2, 3}}
	var got []int

	b, err := Drain(it, 2, collect(&got, -1))
	require.NoError(t, err)
	assert.Equal(t, Batch{Fetched: 2}, b)
	assert.True(t, b.Status().OKStrict())

	b, err = Drain(it, 2, collect(&got, -1))
	require.NoError(t, err)
	assert.Equal(t, Batch{Fetched: 1, Exhausted: true}, b)
	assert.True(t, b.Status().EndOfData())
	assert.Equal(t, int64(1), b.Status().RowCount())

	b, err = Drain(it, 2, collect(&got, -1))
	require.NoError(t, err)
	assert.Equal(t, Batch{Exhausted: true}, b)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDrain_Truncation(t *testing.T) {
	var got []int
	b, err := Drain(&sliceIter{rows: []int{1, 2}}, 5, collect(&got, 2))
	require.NoError(t, err)
	assert.True(t, b.Truncated)

	st := b.Status()
	assert.True(t, st.EndOfData())
	assert.True(t, st.Truncated())
	assert.True(t, st.OK())
}

func TestDrain_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := Drain(&sliceIter{rows: []int{1}, err: boom}, 5, collect(new([]int), -1))
	assert.ErrorIs(t, err, boom, "iterator error surfaces when it runs dry")

	failing := func(Scanner) (bool, error) { return false, boom }
	b, err := Drain(&sliceIter{rows: []int{1, 2}}, 5, failing)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, b.Fetched)
}
