package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	"github.com/smallbiznis/digistore/internal/providers/email"
	"github.com/smallbiznis/digistore/internal/providers/pdf"
	"github.com/smallbiznis/digistore/internal/ratelimit"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SubjectPaid = "Your Downloads are Ready!"
	SubjectFree = "Your Free Downloads are Ready!"

	resendLockTTL = time.Minute
	keyResendLock = "lock:receipt:resend:%d"
)

var (
	ErrOrderNotCompleted = errors.New("order_not_completed")
	ErrNoDownloads       = errors.New("order_has_no_downloads")
	ErrResendInProgress  = errors.New("resend_in_progress")
)

var Module = fx.Module("receipt",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Email       email.Provider
	PDF         pdf.Provider
	OrderSvc    orderdomain.Service
	Issuer      downloaddomain.Issuer
	SettingsSvc settingsdomain.Service
	Locker      *ratelimit.Locker `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	email       email.Provider
	pdf         pdf.Provider
	orderSvc    orderdomain.Service
	issuer      downloaddomain.Issuer
	settingsSvc settingsdomain.Service
	locker      *ratelimit.Locker
}

func New(p Params) *Service {
	return &Service{
		log:         p.Log.Named("receipt"),
		email:       p.Email,
		pdf:         p.PDF,
		orderSvc:    p.OrderSvc,
		issuer:      p.Issuer,
		settingsSvc: p.SettingsSvc,
		locker:      p.Locker,
	}
}

// Send mails one download link per token of a completed order. Callers on
// the purchase path log the error and carry on.
func (s *Service) Send(ctx context.Context, order *orderdomain.Order, subject string) error {
	if order == nil || order.Status != orderdomain.StatusCompleted {
		return ErrOrderNotCompleted
	}
	tokens, err := s.issuer.ListByOrder(ctx, snowflake.ID(order.ID).String())
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}
	if len(tokens) == 0 {
		return ErrNoDownloads
	}

	body, err := s.render(ctx, order, subject, tokens)
	if err != nil {
		return err
	}
	if err := s.email.Send(ctx, []string{order.Email}, subject, body); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	s.log.Info("receipt sent",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("links", len(tokens)),
	)
	return nil
}

// Resend re-mails the current links of a completed order.
func (s *Service) Resend(ctx context.Context, orderID string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(orderID))
	if err != nil || id == 0 {
		return orderdomain.ErrInvalidID
	}
	order, err := s.orderSvc.GetOrder(ctx, id.Int64())
	if err != nil {
		return err
	}

	err = s.locker.WithLock(ctx, fmt.Sprintf(keyResendLock, order.ID), resendLockTTL, func() error {
		return s.Send(ctx, order, SubjectPaid)
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return ErrResendInProgress
	}
	return err
}

// RenderPDF returns the printable receipt and its file name.
func (s *Service) RenderPDF(ctx context.Context, orderID string) (io.Reader, string, error) {
	detail, err := s.orderSvc.Get(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	branding, err := s.settingsSvc.Branding(ctx)
	if err != nil {
		s.log.Warn("branding lookup failed, using defaults", zap.Error(err))
	}

	data := pdf.ReceiptData{
		StoreName:   branding.StoreName,
		OrderNumber: detail.OrderNumber,
		Email:       detail.Email,
		Status:      detail.Status,
		Total:       FormatMoney(detail.Total, detail.Currency),
	}
	if detail.CompletedAt != nil {
		data.DatePaid = detail.CompletedAt.Format("2006-01-02")
	}
	for _, item := range detail.Items {
		data.Items = append(data.Items, pdf.ReceiptItem{
			Description: item.Name,
			Qty:         item.Quantity,
			Amount:      FormatMoney(item.Price, detail.Currency),
		})
	}

	r, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("render receipt pdf: %w", err)
	}
	return r, fmt.Sprintf("receipt-%s.pdf", detail.OrderNumber), nil
}

func (s *Service) render(ctx context.Context, order *orderdomain.Order, subject string, tokens []downloaddomain.TokenResponse) (string, error) {
	branding, err := s.settingsSvc.Branding(ctx)
	if err != nil {
		s.log.Warn("branding lookup failed, using defaults", zap.Error(err))
	}
	policy := s.issuer.Policy()

	view := receiptView{
		StoreName:    branding.StoreName,
		Intro:        subject,
		OrderNumber:  order.OrderNumber,
		ExpiryHours:  int(policy.TTL.Hours()),
		MaxDownloads: policy.MaxDownloads,
	}
	if order.Total > 0 {
		view.Total = FormatMoney(order.Total, order.Currency)
	}
	for _, t := range tokens {
		name := t.ProductName
		if name == "" {
			name = "Download"
		}
		view.Links = append(view.Links, link{Name: name, URL: t.DownloadURL})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

// FormatMoney renders minor units, e.g. 1598 usd as $15.98.
func FormatMoney(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	value := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	switch strings.ToLower(currency) {
	case "usd", "":
		return sign + "$" + value
	case "eur":
		return sign + "€" + value
	case "gbp":
		return sign + "£" + value
	default:
		return sign + value + " " + strings.ToUpper(currency)
	}
}
