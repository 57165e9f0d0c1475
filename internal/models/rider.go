package models

import (
	"time"
)

type Rider struct {
	ID                     string  `db:"id" json:"id"`
	Name                   string  `db:"name" json:"name"`
	Phone                  string  `db:"phone" json:"phone"`
	Email                  *string `db:"email" json:"email,omitempty"`
	ExpoPushToken          *string `db:"expo_push_token" json:"expo_push_token,omitempty"`
	StripeCustomerID       *string `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	DefaultPaymentMethodID *string `db:"default_payment_method_id" json:"default_payment_method_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CreateRiderRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Phone string `json:"phone" validate:"required,min=10,max=15"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type RiderResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email,omitempty"`
}

func (u *Rider) ToResponse() *RiderResponse {
	return &RiderResponse{
		ID:    u.ID,
		Name:  u.Name,
		Phone: u.Phone,
		Email: u.Email,
	}
}
