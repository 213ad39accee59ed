package server

import (
	"context"
	"net/http"
	"testing"

	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNewsletterService struct {
	got newsletterdomain.SubscribeRequest
	err error
}

func (f *fakeNewsletterService) Subscribe(ctx context.Context, req newsletterdomain.SubscribeRequest) (*newsletterdomain.SubscribeResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &newsletterdomain.SubscribeResponse{Success: true}, nil
}

func TestSubscribeNewsletter(t *testing.T) {
	newsletter := &fakeNewsletterService{}
	r := newTestEngine(t, &Server{newsletterSvc: newsletter})

	rec := doRequest(r, http.MethodPost, "/newsletter", []byte(`{"email":"reader@example.com","source":"cta"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"already_subscribed":false}`, rec.Body.String())
	assert.Equal(t, "reader@example.com", newsletter.got.Email)
	assert.Equal(t, "cta", newsletter.got.Source)

	newsletter.err = newsletterdomain.ErrInvalidEmail
	rec = doRequest(r, http.MethodPost, "/newsletter", []byte(`{"email":"nope"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email address is invalid", decodeError(t, rec).Message)

	rec = doRequest(r, http.MethodPost, "/newsletter", []byte(`not json`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
