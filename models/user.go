package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"userid" bson:"userid"`
	Username      string             `json:"username" bson:"username"`
	Email         string             `json:"email" bson:"email"`
	Password      string             `json:"-" bson:"password"`
	Role          []string           `json:"role" bson:"role"` // student, organizer, admin
	OrgID         string             `json:"orgid" bson:"orgid,omitempty"`
	RefreshToken  string             `json:"-" bson:"refresh_token,omitempty"`
	RefreshExpiry time.Time          `json:"-" bson:"refresh_expiry,omitempty"`
	LastLogin     time.Time          `json:"-" bson:"last_login,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
