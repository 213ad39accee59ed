package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/download/domain"
	obsmetrics "github.com/smallbiznis/digistore/internal/observability/metrics"
	"github.com/smallbiznis/digistore/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	tokenAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	regenerateLockTTL   = 30 * time.Second
	keyRegenerateLock   = "lock:download:regenerate:%d:%d"
	orderStatusComplete = "completed"
)

type IssuerParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Cfg        config.Config
	Storefront *config.StorefrontConfigHolder
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Issuer struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	baseURL    string
	storefront *config.StorefrontConfigHolder
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
}

func NewIssuer(p IssuerParams) domain.Issuer {
	return &Issuer{
		db:         p.DB,
		log:        p.Log.Named("download.issuer"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		baseURL:    strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
		storefront: p.Storefront,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Issuer) Policy() domain.Policy {
	policy := config.DefaultStorefrontConfig().Download
	if s.storefront != nil {
		policy = s.storefront.Get().Download
	}
	return domain.Policy{
		TTL:          policy.TokenTTL,
		MaxDownloads: policy.MaxDownloads,
		TokenLength:  policy.TokenLength,
	}
}

func (s *Issuer) DownloadURL(token string) string {
	return fmt.Sprintf("%s/download/%s", s.baseURL, token)
}

func (s *Issuer) IssueTx(ctx context.Context, tx *gorm.DB, orderID int64, productIDs []int64) ([]domain.DownloadToken, error) {
	if orderID == 0 {
		return nil, domain.ErrInvalidOrder
	}
	policy := s.Policy()
	generate, err := nanoid.CustomASCII(tokenAlphabet, policy.TokenLength)
	if err != nil {
		return nil, fmt.Errorf("token generator: %w", err)
	}

	ids := distinct(productIDs)
	tokens := make([]domain.DownloadToken, 0, len(ids))
	now := s.clock.Now()
	for _, productID := range ids {
		token := domain.DownloadToken{
			ID:           s.genID.Generate().Int64(),
			OrderID:      orderID,
			ProductID:    productID,
			Token:        generate(),
			ExpiresAt:    now.Add(policy.TTL),
			MaxDownloads: policy.MaxDownloads,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Upsert(ctx, tx, &token); err != nil {
			return nil, err
		}
		stored, err := s.repo.FindByOrderProduct(ctx, tx, orderID, productID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("download token for product %d not persisted", productID)
		}
		tokens = append(tokens, *stored)
	}

	s.obsMetrics.RecordTokensIssued(ctx, len(tokens))
	return tokens, nil
}

func (s *Issuer) Regenerate(ctx context.Context, orderID string, productID string) (*domain.TokenResponse, error) {
	oid, err := parseID(orderID, domain.ErrInvalidOrder)
	if err != nil {
		return nil, err
	}
	pid, err := parseID(productID, domain.ErrInvalidProduct)
	if err != nil {
		return nil, err
	}

	var issued domain.DownloadToken
	run := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			status, err := s.repo.FindOrderStatus(ctx, tx, oid)
			if err != nil {
				return err
			}
			switch status {
			case "":
				return domain.ErrOrderNotFound
			case orderStatusComplete:
			default:
				return domain.ErrOrderNotCompleted
			}
			included, err := s.repo.OrderIncludesProduct(ctx, tx, oid, pid)
			if err != nil {
				return err
			}
			if !included {
				return domain.ErrProductNotInOrder
			}
			tokens, err := s.IssueTx(ctx, tx, oid, []int64{pid})
			if err != nil {
				return err
			}
			issued = tokens[0]
			return nil
		})
	}

	err = s.locker.WithLock(ctx, fmt.Sprintf(keyRegenerateLock, oid, pid), regenerateLockTTL, run)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return nil, domain.ErrRegenerateBusy
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("download token regenerated",
		zap.Int64("order_id", oid),
		zap.Int64("product_id", pid),
	)

	rows, err := s.repo.ListByOrder(ctx, s.db, oid)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.ID == issued.ID {
			resp := s.toResponse(row)
			return &resp, nil
		}
	}
	resp := s.toResponse(domain.TokenRow{DownloadToken: issued})
	return &resp, nil
}

func (s *Issuer) ListByOrder(ctx context.Context, orderID string) ([]domain.TokenResponse, error) {
	oid, err := parseID(orderID, domain.ErrInvalidOrder)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByOrder(ctx, s.db, oid)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.TokenResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, s.toResponse(row))
	}
	return resp, nil
}

func (s *Issuer) toResponse(row domain.TokenRow) domain.TokenResponse {
	return domain.TokenResponse{
		ID:            snowflake.ID(row.ID).String(),
		OrderID:       snowflake.ID(row.OrderID).String(),
		ProductID:     snowflake.ID(row.ProductID).String(),
		ProductName:   row.ProductName,
		Token:         row.Token,
		DownloadURL:   s.DownloadURL(row.Token),
		ExpiresAt:     row.ExpiresAt,
		DownloadCount: row.DownloadCount,
		MaxDownloads:  row.MaxDownloads,
		Remaining:     row.Remaining(),
	}
}

// distinct drops duplicates and zero ids and sorts so issuance order is stable.
func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func parseID(raw string, invalid error) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id.Int64(), nil
}
