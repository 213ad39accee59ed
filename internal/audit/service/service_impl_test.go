package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	auditrepo "github.com/smallbiznis/digistore/internal/audit/repository"
	"github.com/smallbiznis/digistore/internal/audit/service"
	"github.com/smallbiznis/digistore/internal/clock"
	obscontext "github.com/smallbiznis/digistore/internal/observability/context"
	"github.com/smallbiznis/digistore/pkg/db/dbtest"
	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := service.NewService(service.Params{
		DB:    dbtest.Open(t, &auditdomain.AuditLog{}),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})
	return svc, clk
}

func ptr[T any](v T) *T { return &v }

func TestAuditLogTakesActorFromContext(t *testing.T) {
	svc, _ := newService(t)
	ctx := obscontext.WithActor(context.Background(), "support", "helpdesk")
	ctx = obscontext.WithRequestID(ctx, "req-42")
	ctx = obscontext.WithClientIP(ctx, "203.0.113.9")

	require.NoError(t, svc.AuditLog(ctx, "", nil, "receipt.resent", "order", ptr("1001"), map[string]any{"email": "buyer@example.com", "": "dropped"}))

	resp, err := svc.List(context.Background(), auditdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "admin", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "helpdesk", *entry.ActorID)
	assert.Equal(t, "receipt.resent", entry.Action)
	assert.Equal(t, "order", entry.TargetType)
	assert.Equal(t, "1001", *entry.TargetID)
	assert.Equal(t, "support", entry.Metadata["actor_role"])
	assert.Equal(t, "buyer@example.com", entry.Metadata["email"])
	assert.NotContains(t, entry.Metadata, "")
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-42", *entry.RequestID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "203.0.113.9", *entry.IPAddress)
	assert.False(t, resp.PageInfo.HasMore)
}

func TestAuditLogDefaults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.AuditLog(ctx, "", nil, "  ", "order", nil, nil), auditdomain.ErrInvalidAction)

	require.NoError(t, svc.AuditLog(ctx, "", nil, "catalog.seeded", "", ptr("  "), nil))
	resp, err := svc.List(ctx, auditdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	assert.Nil(t, resp.AuditLogs[0].TargetID)
}

func TestListFiltersAndPages(t *testing.T) {
	svc, clk := newService(t)
	ctx := obscontext.WithActor(context.Background(), "admin", "owner")

	start := clk.Now()
	for _, action := range []string{"product.created", "product.updated", "order.status_updated", "product.deleted"} {
		require.NoError(t, svc.AuditLog(ctx, "", nil, action, "product", ptr("7"), nil))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.Equal(t, "product.deleted", first.AuditLogs[0].Action)
	assert.Equal(t, "order.status_updated", first.AuditLogs[1].Action)
	require.True(t, first.PageInfo.HasMore)

	second, err := svc.List(ctx, auditdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 2)
	assert.Equal(t, "product.updated", second.AuditLogs[0].Action)
	assert.Equal(t, "product.created", second.AuditLogs[1].Action)
	assert.False(t, second.PageInfo.HasMore)

	byAction, err := svc.List(ctx, auditdomain.ListRequest{Action: "order.status_updated"})
	require.NoError(t, err)
	require.Len(t, byAction.AuditLogs, 1)

	end := start.Add(90 * time.Second)
	windowed, err := svc.List(ctx, auditdomain.ListRequest{StartAt: &start, EndAt: &end, ActorID: "owner"})
	require.NoError(t, err)
	assert.Len(t, windowed.AuditLogs, 2)

	_, err = svc.List(ctx, auditdomain.ListRequest{StartAt: &end, EndAt: &start})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
	_, err = svc.List(ctx, auditdomain.ListRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
