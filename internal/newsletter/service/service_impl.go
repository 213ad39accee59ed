package service

import (
	"bytes"
	"context"
	"html/template"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/newsletter/domain"
	"github.com/smallbiznis/digistore/internal/providers/email"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSource = "footer"
	maxSourceLen  = 64
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(
	`<p>Thanks for subscribing to {{.StoreName}}.</p><p>We will let you know when new products land.</p>`,
))

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Email       email.Provider
	SettingsSvc settingsdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	email       email.Provider
	settingsSvc settingsdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("newsletter.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		email:       p.Email,
		settingsSvc: p.SettingsSvc,
	}
}

// Subscribe records the address once. Only a new subscriber gets the welcome
// mail, and a mail failure does not undo the subscription.
func (s *Service) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*domain.SubscribeResponse, error) {
	address := strings.ToLower(strings.TrimSpace(req.Email))
	if address == "" {
		return nil, domain.ErrEmailRequired
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return nil, domain.ErrInvalidEmail
	}

	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = defaultSource
	}
	if len(source) > maxSourceLen {
		source = source[:maxSourceLen]
	}

	created, err := s.repo.InsertIfAbsent(ctx, s.db, &domain.Subscriber{
		ID:        s.genID.Generate().Int64(),
		Email:     address,
		Source:    source,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return &domain.SubscribeResponse{Success: true, AlreadySubscribed: true}, nil
	}

	s.sendWelcome(ctx, address)
	return &domain.SubscribeResponse{Success: true}, nil
}

func (s *Service) sendWelcome(ctx context.Context, address string) {
	branding, err := s.settingsSvc.Branding(ctx)
	if err != nil {
		s.log.Warn("branding lookup failed, using defaults", zap.Error(err))
	}
	var body bytes.Buffer
	if err := welcomeTemplate.Execute(&body, branding); err != nil {
		s.log.Warn("render welcome mail failed", zap.Error(err))
		return
	}
	subject := "Welcome to " + branding.StoreName
	if err := s.email.Send(ctx, []string{address}, subject, body.String()); err != nil {
		s.log.Warn("welcome mail failed", zap.String("email", address), zap.Error(err))
	}
}
