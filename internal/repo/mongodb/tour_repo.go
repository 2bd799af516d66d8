package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ToursCollection   = "tours"
	ReviewsCollection = "reviews"
)

type ToursRepo struct {
	tours   *mongo.Collection
	reviews *mongo.Collection
	now     func() time.Time
}

func NewToursRepo(db *mongo.Database) *ToursRepo {
	return &ToursRepo{
		tours:   db.Collection(ToursCollection),
		reviews: db.Collection(ReviewsCollection),
		now:     time.Now,
	}
}

// EnsureIndexes creates the tour indexes. Called once at startup.
func (r *ToursRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}},
			Options: options.Index().SetName("idx_price_rating"),
		},
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("idx_slug"),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("uniq_name").SetUnique(true),
		},
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.tours.Indexes().CreateMany(ctx, models)
	return err
}

func (r *ToursRepo) List(ctx context.Context, f query.Features) ([]domain.Tour, error) {
	filter, err := filterDoc(f.Filter, nil)
	if err != nil {
		return nil, err
	}
	filter[notSecret.Key] = notSecret.Value

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := r.tours.Find(ctx, filter, findOptions(f))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	tours := []domain.Tour{}
	if err := cur.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

// Get returns the tour with its reviews, or (nil, nil) when absent or secret.
func (r *ToursRepo) Get(ctx context.Context, id string) (*domain.Tour, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var t domain.Tour
	err = r.tours.FindOne(ctx, bson.D{{Key: "_id", Value: oid}, notSecret}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cur, err := r.reviews.Find(ctx, bson.M{"tour": oid}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &t.Reviews); err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return &t, nil
}

func (r *ToursRepo) Create(ctx context.Context, t *domain.Tour) (*domain.Tour, error) {
	t.ID = primitive.NilObjectID
	t.Reviews = nil
	t.Prepare(r.now())
	if err := t.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.tours.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return nil, &domain.DuplicateError{Field: "name", Value: t.Name}
	}
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid
	}
	return t, nil
}

// Update replaces the stored tour with t after validation.
func (r *ToursRepo) Update(ctx context.Context, id string, t *domain.Tour) (*domain.Tour, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	t.ID = oid
	t.Reviews = nil
	t.Prepare(r.now())
	if err := t.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.tours.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}, notSecret}, t)
	if mongo.IsDuplicateKeyError(err) {
		return nil, &domain.DuplicateError{Field: "name", Value: t.Name}
	}
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// Delete removes the tour and its reviews.
func (r *ToursRepo) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.tours.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	if _, err := r.reviews.DeleteMany(ctx, bson.M{"tour": oid}); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	return nil
}

// Stats groups well-rated tours by difficulty, cheapest average first.
func (r *ToursRepo) Stats(ctx context.Context) ([]domain.TourStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{notSecret}}},
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toUpper": "$difficulty"}},
			{Key: "numTours", Value: bson.M{"$sum": 1}},
			{Key: "numRatings", Value: bson.M{"$sum": "$ratingsQuantity"}},
			{Key: "avgRating", Value: bson.M{"$avg": "$ratingsAverage"}},
			{Key: "avgPrice", Value: bson.M{"$avg": "$price"}},
			{Key: "minPrice", Value: bson.M{"$min": "$price"}},
			{Key: "maxPrice", Value: bson.M{"$max": "$price"}},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
	stats := []domain.TourStats{}
	if err := r.aggregate(ctx, pipeline, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (r *ToursRepo) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{notSecret}}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lt": to}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$month": "$startDates"}},
			{Key: "numTourStarts", Value: bson.M{"$sum": 1}},
			{Key: "tours", Value: bson.M{"$push": "$name"}},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
	plan := []domain.MonthlyPlan{}
	if err := r.aggregate(ctx, pipeline, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *ToursRepo) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cur, err := r.tours.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}
