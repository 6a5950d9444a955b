package models

import "time"

// Product is the model for the 'products' table.
// Price and Stock are the live catalog values; orders snapshot them at
// placement time and never read them again.
type Product struct {
	ID          int64   `json:"id" db:"id"`
	SellerID    int64   `json:"sellerId" db:"seller_id"`
	CategoryID  *int64  `json:"categoryId,omitempty" db:"category_id"`
	Name        string  `json:"name" db:"name"`
	Slug        string  `json:"slug" db:"slug"`
	Description string  `json:"description" db:"description"`
	Price       float64 `json:"price" db:"price"`
	Stock       int     `json:"stock" db:"stock"`
	Image       string  `json:"image" db:"image"`

	AverageRating float64 `json:"averageRating" db:"average_rating"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	CategoryName string `json:"categoryName,omitempty" db:"-"`
	SellerName   string `json:"sellerName,omitempty" db:"-"`
	ShopName     string `json:"shopName,omitempty" db:"-"`
}

// ProductReview is the model for the 'product_reviews' table
type ProductReview struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"productId" db:"product_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
