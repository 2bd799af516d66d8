// Package mongodb stores tours and reviews in MongoDB.
package mongodb

import (
	"strconv"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// notSecret hides secret tours from every read.
var notSecret = bson.E{Key: "secretTour", Value: bson.M{"$ne": true}}

// filterDoc merges conditions per field. idFields lists fields holding ObjectIDs.
func filterDoc(conds []query.Condition, idFields map[string]bool) (bson.M, error) {
	out := bson.M{}
	for _, c := range conds {
		v, err := coerce(c.Field, c.Value, idFields)
		if err != nil {
			return nil, err
		}
		if c.Op == query.OpEq {
			out[c.Field] = v
			continue
		}
		ops, ok := out[c.Field].(bson.M)
		if !ok {
			ops = bson.M{}
			out[c.Field] = ops
		}
		ops["$"+string(c.Op)] = v
	}
	return out, nil
}

// coerce types a query-string value: ObjectIDs for id fields, then numbers, booleans
// and RFC 3339 dates, falling back to the raw string.
func coerce(field, raw string, idFields map[string]bool) (any, error) {
	if idFields[field] {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, &domain.InvalidIDError{Value: raw}
		}
		return id, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return raw, nil
}

func sortDoc(fields []query.SortField) bson.D {
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	return out
}

// projectionDoc returns nil when every field is wanted. MongoDB rejects mixed
// inclusion and exclusion, so any inclusion wins.
func projectionDoc(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	var include, exclude bson.D
	for _, f := range fields {
		if len(f) > 1 && f[0] == '-' {
			exclude = append(exclude, bson.E{Key: f[1:], Value: 0})
			continue
		}
		include = append(include, bson.E{Key: f, Value: 1})
	}
	if len(include) > 0 {
		return include
	}
	return exclude
}

func findOptions(f query.Features) *options.FindOptions {
	opts := options.Find().
		SetSort(sortDoc(f.Sort)).
		SetSkip(int64(f.Skip())).
		SetLimit(int64(f.Limit))
	if p := projectionDoc(f.Fields); p != nil {
		opts.SetProjection(p)
	}
	return opts
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &domain.InvalidIDError{Value: id}
	}
	return oid, nil
}
