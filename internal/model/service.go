package model

// Service is a detailing package offered to customers.
type Service struct {
	Base
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description" json:"description"`
	Price       float64 `db:"price" json:"price"`
}

// ServicePatch carries the fields of a partial update. Nil fields are left untouched.
type ServicePatch struct {
	Name        *string
	Description *string
	Price       *float64
}

func (p ServicePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil
}
