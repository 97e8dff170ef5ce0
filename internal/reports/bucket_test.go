package reports

import (
	"testing"

	"financify/internal/core"

	"github.com/stretchr/testify/assert"
)

func stmt(id int64, date string) core.Statement {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Statement{ID: id, Date: d, Description: "s", Value: core.MustMoney("1")}
}

func TestSortByDate_Stable(t *testing.T) {
	in := []core.Statement{
		stmt(1, "2021-03-01"),
		stmt(2, "2021-01-15"),
		stmt(3, "2021-03-01"),
		stmt(4, "2021-01-15"),
		stmt(5, "2020-12-31"),
	}
	SortByDate(in)
	assert.Equal(t, []int64{5, 2, 4, 1, 3}, ids(in))
}

func TestBucketByMonth(t *testing.T) {
	in := []core.Statement{
		stmt(5, "2020-12-31"),
		stmt(2, "2021-01-15"),
		stmt(4, "2021-01-15"),
		stmt(6, "2021-01-31"),
		stmt(1, "2021-03-01"),
	}
	b := BucketByMonth(in)

	assert.Equal(t, []core.MonthKey{"2020-12", "2021-01", "2021-03"}, b.Keys())
	assert.Equal(t, []int64{2, 4, 6}, ids(b.Get("2021-01")))
	assert.Nil(t, b.Get("2021-02"), "months without statements have no bucket")

	// Every statement lands in exactly the bucket of its own month.
	total := 0
	for _, k := range b.Keys() {
		for _, s := range b.Get(k) {
			assert.Equal(t, k, s.Date.MonthKey())
			total++
		}
	}
	assert.Equal(t, len(in), total)
}

func TestUnionKeys(t *testing.T) {
	a := BucketByMonth([]core.Statement{stmt(1, "2021-01-01"), stmt(2, "2021-03-01")})
	l := BucketByMonth([]core.Statement{stmt(3, "2021-02-01"), stmt(4, "2021-03-05")})
	assert.Equal(t, []core.MonthKey{"2021-01", "2021-02", "2021-03"}, UnionKeys(a, l))
	assert.Empty(t, UnionKeys(BucketByMonth(nil)))
}
