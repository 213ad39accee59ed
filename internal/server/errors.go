package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	"github.com/smallbiznis/digistore/internal/authorization"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	"github.com/smallbiznis/digistore/internal/cart"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/receipt"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"github.com/smallbiznis/digistore/internal/storage"
	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// domainError maps a domain sentinel to the response shown to the caller.
// Messages are end-user facing; the storefront renders them as-is.
type domainError struct {
	err     error
	status  int
	message string
}

var domainErrors = []domainError{
	// checkout
	{checkoutdomain.ErrEmptyCart, http.StatusBadRequest, "No items in cart"},
	{checkoutdomain.ErrEmailRequired, http.StatusBadRequest, "Email is required"},
	{checkoutdomain.ErrInvalidEmail, http.StatusBadRequest, "Email address is invalid"},
	{checkoutdomain.ErrInvalidItem, http.StatusBadRequest, "Cart contains an invalid item"},
	{checkoutdomain.ErrItemUnavailable, http.StatusConflict, "An item in your cart is no longer available"},
	{checkoutdomain.ErrSessionCreateFailed, http.StatusInternalServerError, "failed to create checkout session"},
	{checkoutdomain.ErrMissingReference, http.StatusBadRequest, "session_id or order_id is required"},
	{checkoutdomain.ErrOrderNotFound, http.StatusNotFound, "Order not found"},

	// newsletter
	{newsletterdomain.ErrEmailRequired, http.StatusBadRequest, "Email is required"},
	{newsletterdomain.ErrInvalidEmail, http.StatusBadRequest, "Email address is invalid"},

	// cart
	{cart.ErrItemUnavailable, http.StatusConflict, "This item is no longer available"},
	{cart.ErrInvalidCartID, http.StatusBadRequest, "Cart id is invalid"},
	{cart.ErrInvalidRef, http.StatusBadRequest, "Cart item is invalid"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "Quantity is invalid"},

	// delivery
	{downloaddomain.ErrInvalidToken, http.StatusNotFound, "Invalid download token"},
	{downloaddomain.ErrTokenExpired, http.StatusGone, "Download token has expired"},
	{downloaddomain.ErrLimitReached, http.StatusForbidden, "Download limit reached"},
	{downloaddomain.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{downloaddomain.ErrFileNotFound, http.StatusNotFound, "File not found"},
	{downloaddomain.ErrUnavailable, http.StatusConflict, "This product has no downloadable file"},
	{downloaddomain.ErrProcessingFailed, http.StatusInternalServerError, "Processing failed"},
	{downloaddomain.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{downloaddomain.ErrOrderNotCompleted, http.StatusConflict, "Order is not completed"},
	{downloaddomain.ErrProductNotInOrder, http.StatusNotFound, "Product is not part of this order"},
	{downloaddomain.ErrRegenerateBusy, http.StatusConflict, "Token regeneration already in progress"},

	// webhook
	{paymentdomain.ErrMissingSignature, http.StatusBadRequest, "No signature"},
	{paymentdomain.ErrInvalidSignature, http.StatusBadRequest, "Webhook signature verification failed"},
	{paymentdomain.ErrSignatureExpired, http.StatusBadRequest, "Webhook signature verification failed"},
	{paymentdomain.ErrInvalidPayload, http.StatusBadRequest, "Invalid webhook payload"},
	{paymentdomain.ErrProviderNotFound, http.StatusNotFound, "Unknown payment provider"},
	{paymentdomain.ErrWebhookNotConfigured, http.StatusServiceUnavailable, "Webhook is not configured"},

	// catalog
	{categorydomain.ErrHasSubcategories, http.StatusConflict, "Cannot delete category with subcategories. Delete subcategories first."},
	{categorydomain.ErrHasProducts, http.StatusConflict, "Cannot delete category with products. Move or delete products first."},
	{categorydomain.ErrSlugTaken, http.StatusConflict, "A category with this slug already exists"},
	{categorydomain.ErrNotFound, http.StatusNotFound, "Category not found"},
	{productdomain.ErrSlugTaken, http.StatusConflict, "A product with this slug already exists"},
	{productdomain.ErrNotFound, http.StatusNotFound, "Product not found"},
	{bundledomain.ErrSlugTaken, http.StatusConflict, "A bundle with this slug already exists"},
	{bundledomain.ErrNotFound, http.StatusNotFound, "Bundle not found"},

	// orders and receipts
	{orderdomain.ErrNotFound, http.StatusNotFound, "Order not found"},
	{orderdomain.ErrStatusTransition, http.StatusConflict, "Completed orders cannot change status"},
	{orderdomain.ErrAlreadyCompleted, http.StatusConflict, "Order is already completed"},
	{receipt.ErrOrderNotCompleted, http.StatusConflict, "Order is not completed"},
	{receipt.ErrNoDownloads, http.StatusConflict, "Order has no downloads"},
	{receipt.ErrResendInProgress, http.StatusConflict, "Receipt resend already in progress"},

	{settingsdomain.ErrNotFound, http.StatusNotFound, "Setting not found"},

	// assets
	{storage.ErrInvalidSignature, http.StatusForbidden, "Invalid signature"},
	{storage.ErrURLExpired, http.StatusForbidden, "Link has expired"},
	{storage.ErrNotFound, http.StatusNotFound, "File not found"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.status, errorPayload{
				Type:    d.err.Error(),
				Message: d.message,
			}
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "Too many requests, please try again later",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same classification the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if err == nil {
		return payload.Type, ""
	}
	return payload.Type, errorCode(err)
}

// errorCode is the innermost sentinel text of a wrapped error.
func errorCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return err.Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	case isCategoryValidationError(err),
		isProductValidationError(err),
		isBundleValidationError(err),
		isOrderValidationError(err),
		isSettingsValidationError(err),
		errors.Is(err, checkoutdomain.ErrInvalidMetadata),
		errors.Is(err, downloaddomain.ErrInvalidOrder),
		errors.Is(err, downloaddomain.ErrInvalidProduct):
		return true
	default:
		return false
	}
}

func isCategoryValidationError(err error) bool {
	switch {
	case errors.Is(err, categorydomain.ErrInvalidID),
		errors.Is(err, categorydomain.ErrInvalidName),
		errors.Is(err, categorydomain.ErrInvalidSlug),
		errors.Is(err, categorydomain.ErrInvalidParent),
		errors.Is(err, categorydomain.ErrParentNotFound):
		return true
	default:
		return false
	}
}

func isProductValidationError(err error) bool {
	switch {
	case errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidSlug),
		errors.Is(err, productdomain.ErrInvalidType),
		errors.Is(err, productdomain.ErrInvalidPrice),
		errors.Is(err, productdomain.ErrInvalidDeliveryURL),
		errors.Is(err, productdomain.ErrInvalidCategory),
		errors.Is(err, productdomain.ErrCategoryRequired),
		errors.Is(err, productdomain.ErrCategoryNotFound):
		return true
	default:
		return false
	}
}

func isBundleValidationError(err error) bool {
	switch {
	case errors.Is(err, bundledomain.ErrInvalidID),
		errors.Is(err, bundledomain.ErrInvalidName),
		errors.Is(err, bundledomain.ErrInvalidSlug),
		errors.Is(err, bundledomain.ErrInvalidPrice),
		errors.Is(err, bundledomain.ErrInvalidDiscount),
		errors.Is(err, bundledomain.ErrInvalidProducts),
		errors.Is(err, bundledomain.ErrDuplicateProduct),
		errors.Is(err, bundledomain.ErrProductNotFound):
		return true
	default:
		return false
	}
}

func isOrderValidationError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidID),
		errors.Is(err, orderdomain.ErrInvalidEmail),
		errors.Is(err, orderdomain.ErrInvalidSession),
		errors.Is(err, orderdomain.ErrInvalidStatus),
		errors.Is(err, orderdomain.ErrInvalidItems),
		errors.Is(err, orderdomain.ErrInvalidTotal):
		return true
	default:
		return false
	}
}

func isSettingsValidationError(err error) bool {
	switch {
	case errors.Is(err, settingsdomain.ErrInvalidKey),
		errors.Is(err, settingsdomain.ErrInvalidValue):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return errorCode(err)
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "parent_not_found":
		return "parent_id"
	case "category_not_found", "category_required":
		return "category_id"
	case "product_not_found", "duplicate_product":
		return "product_ids"
	case "invalid_page_token":
		return "page_token"
	case "invalid_order_id":
		return "order_id"
	case "invalid_product_id":
		return "product_id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "parent_not_found":
		return "parent category does not exist"
	case "category_not_found":
		return "category does not exist"
	case "category_required":
		return "every product needs a category"
	case "invalid_time_range":
		return "start_at must not be after end_at"
	case "product_not_found":
		return "one or more products do not exist"
	case "duplicate_product":
		return "products must be unique within a bundle"
	case "invalid_delivery_url":
		return "delivery url must be an absolute http(s) url"
	case "invalid_price":
		return "price must be zero or more"
	default:
		return "invalid value"
	}
}
