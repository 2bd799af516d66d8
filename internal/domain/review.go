package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string             `bson:"review" json:"review"`
	Rating    float64            `bson:"rating" json:"rating"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour"`
	User      string             `bson:"user" json:"user"`
}

func (r *Review) Prepare(now time.Time) {
	r.Review = strings.TrimSpace(r.Review)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

func (r *Review) Validate() error {
	if r.Review == "" {
		return fmt.Errorf("Review can not be empty!")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("Rating must be between 1 and 5")
	}
	if r.Tour.IsZero() {
		return fmt.Errorf("Review must belong to a tour.")
	}
	if r.User == "" {
		return fmt.Errorf("Review must belong to a user.")
	}
	return nil
}
