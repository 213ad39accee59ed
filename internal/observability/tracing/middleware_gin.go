package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/digistore/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// tokenPrefixLen keeps enough of a download token to correlate spans with
// logs without making the span a usable link.
const tokenPrefixLen = 6

// routeParamAttributes names the span attribute for each storefront route
// parameter. Parameters not listed stay off the span.
var routeParamAttributes = map[string]string{
	"slug":     "catalog.slug",
	"cartId":   "cart.id",
	"provider": "payment.provider",
	"type":     "cart.item_type",
	"id":       "admin.target_id",
}

// GinMiddleware opens a server span per request and tags it with the
// storefront route parameters, the order touched and the admin actor.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("digistore/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		attrs = append(attrs, StorefrontAttributes(c)...)
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

// StorefrontAttributes reads the request's route parameters, the order id a
// handler recorded and the admin actor. Download tokens are cut to a prefix.
func StorefrontAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, param := range c.Params {
		value := strings.TrimSpace(param.Value)
		if value == "" {
			continue
		}
		if param.Key == "token" {
			attrs = append(attrs, attribute.String("download.token_prefix", TokenPrefix(value)))
			continue
		}
		if key, ok := routeParamAttributes[param.Key]; ok {
			attrs = append(attrs, attribute.String(key, value))
		}
	}
	if orderID := strings.TrimSpace(c.GetString("order_id")); orderID != "" {
		attrs = append(attrs, attribute.String("order.id", orderID))
	}
	if role, name := obscontext.ActorFromContext(c.Request.Context()); name != "" {
		attrs = append(attrs,
			attribute.String("admin.actor", name),
			attribute.String("admin.role", role),
		)
	}
	return attrs
}

// TokenPrefix returns the first characters of a download token.
func TokenPrefix(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= tokenPrefixLen {
		return strings.Repeat("*", len(token))
	}
	return token[:tokenPrefixLen]
}
