package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestParse_Defaults(t *testing.T) {
	f := Parse(url.Values{})

	assert.Empty(t, f.Filter)
	assert.Equal(t, []SortField{{Field: "createdAt", Desc: true}}, f.Sort)
	assert.Empty(t, f.Fields)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, 0, f.Skip())
}

func TestParse_FilterOperators(t *testing.T) {
	f := Parse(mustQuery(t, "difficulty=easy&duration[gte]=5&price[lt]=1500&page=2&sort=price"))

	assert.Equal(t, []Condition{
		{Field: "difficulty", Op: OpEq, Value: "easy"},
		{Field: "duration", Op: OpGte, Value: "5"},
		{Field: "price", Op: OpLt, Value: "1500"},
	}, f.Filter)
	assert.Equal(t, []SortField{{Field: "price"}}, f.Sort)
	assert.Equal(t, 2, f.Page)
}

func TestParse_DropsInjectedKeys(t *testing.T) {
	f := Parse(mustQuery(t, "$where=1&price[$ne]=1&name[regex]=x&ok=1"))

	assert.Equal(t, []Condition{{Field: "ok", Op: OpEq, Value: "1"}}, f.Filter)
}

func TestParse_SortFieldsAndPaging(t *testing.T) {
	f := Parse(mustQuery(t, "sort=-ratingsAverage price&fields=name,price,-$bad&limit=5&page=3"))

	assert.Equal(t, []SortField{{Field: "ratingsAverage", Desc: true}, {Field: "price"}}, f.Sort)
	assert.Equal(t, []string{"name", "price"}, f.Fields)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 10, f.Skip())
}

func TestParse_BadPagingFallsBack(t *testing.T) {
	f := Parse(mustQuery(t, "page=-1&limit=abc"))
	assert.Equal(t, DefaultPage, f.Page)
	assert.Equal(t, DefaultLimit, f.Limit)
}
