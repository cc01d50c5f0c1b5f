package domain

// Category is a product category derived from the catalogue.
type Category struct {
	Name         string `json:"name"`
	ProductCount int    `json:"productCount"`
}
