package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role constants for the 'users.role' column.
const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User Model with Pointers for Nullable Fields
type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`

	// Seller fields. ShopName is set when a user applies to become a
	// seller; IsSellerApproved flips only through the admin endpoints.
	// SellerRating is recomputed whenever a seller review lands.
	ShopName         *string `json:"shopName,omitempty" db:"shop_name"`
	IsSellerApproved bool    `json:"isSellerApproved" db:"is_seller_approved"`
	SellerRating     float64 `json:"sellerRating" db:"seller_rating"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	Addresses []Address `json:"addresses,omitempty" db:"-"`
}

// SellerReview is the model for the 'seller_reviews' table. Buyers
// rate the seller as a shop, independently of product reviews.
type SellerReview struct {
	ID        int64     `json:"id" db:"id"`
	SellerID  int64     `json:"sellerId" db:"seller_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Address is the model for the 'addresses' table
type Address struct {
	ID      int64  `json:"id" db:"id"`
	UserID  int64  `json:"userId" db:"user_id"`
	Street  string `json:"street" db:"street"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	Zip     string `json:"zip" db:"zip"`
	Country string `json:"country" db:"country"`
}

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
