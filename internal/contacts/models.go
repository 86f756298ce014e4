package contacts

// Contact is an address book entry owned by the backend.
type Contact struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes,omitempty"`
}

// Input is the writable part of a Contact.
type Input struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Phone string `json:"phone" validate:"required,min=3,max=32"`
	Notes string `json:"notes,omitempty" validate:"max=1000"`
}
