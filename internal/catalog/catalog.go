package catalog

// Product is one storefront listing. KeyAuthLevel selects the license
// class minted for a completed purchase.
type Product struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Version      string   `json:"version"`
	LastUpdated  string   `json:"lastUpdated"`
	Rating       float64  `json:"rating"`
	Features     []string `json:"features"`
	Tags         []string `json:"tags"`
	KeyAuthLevel string   `json:"keyAuthLevel"`
}

var products = []Product{
	{
		ID:          1,
		Name:        "FloatNote",
		Category:    "AI Solutions",
		Description: "Intelligent note-taking app that overlays on top of any application, with AI-powered formatting and organization.",
		Price:       4.99,
		Version:     "1.5.0",
		LastUpdated: "2024-03-20",
		Rating:      4.9,
		Features: []string{
			"Advanced AI processing",
			"Floating note interface",
			"Automatic note formatting",
			"Cloud sync",
			"Offline mode",
			"Windows and macOS support",
		},
		Tags:         []string{"Standard", "AI", "Productivity", "Note-Taking"},
		KeyAuthLevel: "1",
	},
}

// All returns every listed product.
func All() []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

// ByID returns the product with the given id.
func ByID(id int) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
