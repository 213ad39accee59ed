package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/digistore/internal/clock"
)

const (
	MethodGet = "GET"
	MethodPut = "PUT"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrURLExpired       = errors.New("url_expired")
)

// URLSigner issues time-limited asset URLs. The signature covers the method,
// object name and expiry.
type URLSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	clock   clock.Clock
}

func NewURLSigner(secret []byte, baseURL string, ttl time.Duration, clk clock.Clock) *URLSigner {
	return &URLSigner{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		clock:   clk,
	}
}

// DownloadURL signs GET /assets/<name>.
func (s *URLSigner) DownloadURL(name string) string {
	return s.sign(MethodGet, "/assets/", name)
}

// UploadURL signs PUT /assets/upload/<name>.
func (s *URLSigner) UploadURL(name string) string {
	return s.sign(MethodPut, "/assets/upload/", name)
}

func (s *URLSigner) ExpiresIn() time.Duration {
	return s.ttl
}

func (s *URLSigner) Verify(method, name, expires, signature string) error {
	exp, err := strconv.ParseInt(strings.TrimSpace(expires), 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	expected := s.mac(method, name, exp)
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(given, expected) {
		return ErrInvalidSignature
	}
	if s.clock.Now().Unix() > exp {
		return ErrURLExpired
	}
	return nil
}

func (s *URLSigner) sign(method, prefix, name string) string {
	exp := s.clock.Now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("sig", hex.EncodeToString(s.mac(method, name, exp)))
	return fmt.Sprintf("%s%s%s?%s", s.baseURL, prefix, url.PathEscape(name), q.Encode())
}

func (s *URLSigner) mac(method, name string, expires int64) []byte {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s\n%s\n%d", method, name, expires)
	return h.Sum(nil)
}
