package mongodb

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/query"
	"github.com/diagnosis/natours/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var reviewIDFields = map[string]bool{"tour": true, "_id": true}

type ReviewsRepo struct {
	reviews *mongo.Collection
	tours   *mongo.Collection
	now     func() time.Time
}

func NewReviewsRepo(db *mongo.Database) *ReviewsRepo {
	return &ReviewsRepo{
		reviews: db.Collection(ReviewsCollection),
		tours:   db.Collection(ToursCollection),
		now:     time.Now,
	}
}

// EnsureIndexes allows one review per user and tour.
func (r *ReviewsRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
			Options: options.Index().SetName("uniq_tour_user").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_tour_created"),
		},
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.reviews.Indexes().CreateMany(ctx, models)
	return err
}

func (r *ReviewsRepo) List(ctx context.Context, f query.Features) ([]domain.Review, error) {
	filter, err := filterDoc(f.Filter, reviewIDFields)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := r.reviews.Find(ctx, filter, findOptions(f))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	reviews := []domain.Review{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *ReviewsRepo) Get(ctx context.Context, id string) (*domain.Review, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var rv domain.Review
	err = r.reviews.FindOne(ctx, bson.M{"_id": oid}).Decode(&rv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// Create inserts a review for an existing, non-secret tour and refreshes its ratings.
func (r *ReviewsRepo) Create(ctx context.Context, rv *domain.Review) (*domain.Review, error) {
	rv.ID = primitive.NilObjectID
	rv.Prepare(r.now())
	if err := rv.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := r.tours.CountDocuments(ctx, bson.D{{Key: "_id", Value: rv.Tour}, notSecret})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &domain.ValidationError{Message: "Review must belong to a tour."}
	}

	res, err := r.reviews.InsertOne(ctx, rv)
	if mongo.IsDuplicateKeyError(err) {
		return nil, &domain.DuplicateError{Field: "tour", Value: rv.Tour.Hex()}
	}
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rv.ID = oid
	}
	r.refreshRatings(ctx, rv.Tour)
	return rv, nil
}

// Update replaces text and rating. Tour and author are kept from the stored review.
func (r *ReviewsRepo) Update(ctx context.Context, id string, rv *domain.Review) (*domain.Review, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}
	rv.ID, rv.Tour, rv.User, rv.CreatedAt = current.ID, current.Tour, current.User, current.CreatedAt
	rv.Prepare(r.now())
	if err := rv.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.reviews.ReplaceOne(ctx, bson.M{"_id": rv.ID}, rv)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	r.refreshRatings(ctx, rv.Tour)
	return rv, nil
}

func (r *ReviewsRepo) Delete(ctx context.Context, id string) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.reviews.DeleteOne(ctx, bson.M{"_id": current.ID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	r.refreshRatings(ctx, current.Tour)
	return nil
}

type ratingSummary struct {
	Count int     `bson:"count"`
	Avg   float64 `bson:"avg"`
}

// refreshRatings recomputes ratingsQuantity and ratingsAverage on the tour. Failures are
// logged; the review write already succeeded.
func (r *ReviewsRepo) refreshRatings(ctx context.Context, tourID primitive.ObjectID) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "avg", Value: bson.M{"$avg": "$rating"}},
		}}},
	}
	cur, err := r.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		logger.WarnContext(ctx, "ratings aggregation failed", "tour", tourID.Hex(), "error", err)
		return
	}
	defer cur.Close(ctx)

	var rows []ratingSummary
	if err := cur.All(ctx, &rows); err != nil {
		logger.WarnContext(ctx, "ratings aggregation failed", "tour", tourID.Hex(), "error", err)
		return
	}

	summary := ratingSummary{Avg: domain.DefaultRatingsAverage}
	if len(rows) > 0 {
		summary = rows[0]
		summary.Avg = math.Round(summary.Avg*10) / 10
	}
	_, err = r.tours.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{"$set": bson.M{
		"ratingsQuantity": summary.Count,
		"ratingsAverage":  summary.Avg,
	}})
	if err != nil {
		logger.WarnContext(ctx, "ratings update failed", "tour", tourID.Hex(), "error", err)
	}
}
