package domain

// Design is one premade garment offered for try-on.
type Design struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	ImageURL string `json:"image" yaml:"image"`
	Price    string `json:"price" yaml:"price"`
}
