package model

type Customer struct {
	Base
	Name    string  `db:"name" json:"name"`
	Email   string  `db:"email" json:"email"`
	Phone   string  `db:"phone" json:"phone"`
	Address *string `db:"address" json:"address"`
	Notes   *string `db:"notes" json:"notes"`
}

// CustomerPatch carries the fields of a partial update. Nil fields are left
// untouched; a blank Address or Notes clears the field.
type CustomerPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	Notes   *string
}

func (p CustomerPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil && p.Notes == nil
}
