// Package query turns list-endpoint query strings into a store-neutral description of
// filtering, sorting, projection and pagination.
package query

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"
)

var (
	reserved  = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}
	fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)*$`)
	// price[gte]=500
	bracketed = regexp.MustCompile(`^([^\[\]]+)\[(gte|gt|lte|lt)\]$`)
)

type Condition struct {
	Field string
	Op    Op
	Value string
}

type SortField struct {
	Field string
	Desc  bool
}

type Features struct {
	Filter []Condition
	Sort   []SortField
	Fields []string
	Page   int
	Limit  int
}

func (f Features) Skip() int {
	return (f.Page - 1) * f.Limit
}

// Parse reads APIFeatures-style parameters. Unknown operators and field names that are
// not plain identifiers are dropped, so no operator can be injected through a key.
func Parse(values url.Values) Features {
	f := Features{
		Sort:  parseSort(values.Get("sort")),
		Page:  positiveInt(values.Get("page"), DefaultPage),
		Limit: positiveInt(values.Get("limit"), DefaultLimit),
	}

	for _, field := range splitFields(values.Get("fields")) {
		if fieldName.MatchString(strings.TrimPrefix(field, "-")) {
			f.Fields = append(f.Fields, field)
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		field, op := key, OpEq
		if m := bracketed.FindStringSubmatch(key); m != nil {
			field, op = m[1], Op(m[2])
		}
		if !fieldName.MatchString(field) {
			continue
		}
		for _, v := range values[key] {
			f.Filter = append(f.Filter, Condition{Field: field, Op: op, Value: v})
		}
	}
	return f
}

func parseSort(raw string) []SortField {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}
	var out []SortField
	for _, part := range splitFields(raw) {
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if !fieldName.MatchString(name) {
			continue
		}
		out = append(out, SortField{Field: name, Desc: desc})
	}
	return out
}

// splitFields accepts both "a,b" and "a b".
func splitFields(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
