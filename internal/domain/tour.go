package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return Difficulty(s), true
	default:
		return "", false
	}
}

const (
	TourNameMinLength     = 10
	TourNameMaxLength     = 40
	DefaultRatingsAverage = 4.5
)

type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Slug            string             `bson:"slug" json:"slug"`
	Duration        int                `bson:"duration" json:"duration"`
	MaxGroupSize    int                `bson:"maxGroupSize" json:"maxGroupSize"`
	Difficulty      Difficulty         `bson:"difficulty" json:"difficulty"`
	RatingsAverage  float64            `bson:"ratingsAverage" json:"ratingsAverage"`
	RatingsQuantity int                `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64            `bson:"price" json:"price"`
	PriceDiscount   *float64           `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string             `bson:"summary,omitempty" json:"summary,omitempty"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string             `bson:"imageCover" json:"imageCover"`
	Images          []string           `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"-"`
	StartDates      []time.Time        `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool               `bson:"secretTour" json:"secretTour"`
	StartLocation   *Location          `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location         `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []string           `bson:"guides,omitempty" json:"guides,omitempty"`

	Reviews []Review `bson:"-" json:"reviews,omitempty"`
}

// DurationWeeks is derived, never stored.
func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

func (t Tour) MarshalJSON() ([]byte, error) {
	type plain Tour
	return json.Marshal(struct {
		plain
		DurationWeeks float64 `json:"durationWeeks"`
	}{plain(t), t.DurationWeeks()})
}

// Prepare trims text fields, fills defaults and recomputes the slug. It runs before
// every insert and replace.
func (t *Tour) Prepare(now time.Time) {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = Slugify(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
}

func (t *Tour) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("A tour must have a name")
	}
	if n := len([]rune(t.Name)); n < TourNameMinLength || n > TourNameMaxLength {
		return fmt.Errorf("A tour name must have between %d and %d characters", TourNameMinLength, TourNameMaxLength)
	}
	if t.Duration <= 0 {
		return fmt.Errorf("A tour must have a duration")
	}
	if t.MaxGroupSize <= 0 {
		return fmt.Errorf("A tour must have a group size")
	}
	if t.Difficulty == "" {
		return fmt.Errorf("A tour must have a difficulty")
	}
	if _, ok := ParseDifficulty(string(t.Difficulty)); !ok {
		return fmt.Errorf("Difficulty is either: easy, medium, difficult")
	}
	if t.RatingsAverage < 1 {
		return fmt.Errorf("Rating must be above 1.0")
	}
	if t.RatingsAverage > 5 {
		return fmt.Errorf("Rating must be below 5.0")
	}
	if t.Price <= 0 {
		return fmt.Errorf("A tour must have a price")
	}
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return fmt.Errorf("Discount price (%v) should be below regular price", *t.PriceDiscount)
	}
	if t.ImageCover == "" {
		return fmt.Errorf("A tour must have a cover image")
	}
	for _, loc := range t.Locations {
		if loc.Type != "Point" {
			return fmt.Errorf("Location type must be Point")
		}
	}
	return nil
}

// TourStats is one row of the per-difficulty aggregation.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlan counts tour starts in one month of a year.
type MonthlyPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}
