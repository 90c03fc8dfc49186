package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the credential store document. The password hash, the session
// token sequence and the avatar blob never appear in JSON; the avatar is
// only served through its dedicated binary endpoint.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Age          *int               `bson:"age,omitempty" json:"age,omitempty"`
	Tokens       []string           `bson:"tokens" json:"-"`
	Avatar       []byte             `bson:"avatar,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasToken reports whether raw is one of the user's live session tokens.
// Exact string match; a token pulled at logout no longer authenticates.
func (u User) HasToken(raw string) bool {
	for _, t := range u.Tokens {
		if t == raw {
			return true
		}
	}

	return false
}

// UpdateUserRequest is the PATCH payload. One optional field per allowed
// attribute; absent fields leave the stored value untouched.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=7"`
	Age      *int    `json:"age" binding:"omitempty,gte=0"`
}

// AllowedUpdateField reports whether a PATCH key is mutable at all.
func AllowedUpdateField(name string) bool {
	switch name {
	case "name", "email", "password", "age":
		return true
	}

	return false
}
