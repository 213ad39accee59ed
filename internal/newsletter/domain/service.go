package domain

import (
	"context"
	"errors"
)

type Service interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResponse, error)
}

type SubscribeRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

type SubscribeResponse struct {
	Success           bool `json:"success"`
	AlreadySubscribed bool `json:"already_subscribed"`
}

var (
	ErrEmailRequired = errors.New("email_required")
	ErrInvalidEmail  = errors.New("invalid_email")
)
