package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

type catalogFixture struct {
	service    *CatalogService
	categories *fakeCategoryRepo
	tickets    *fakeTicketRepo
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	categories := newFakeCategoryRepo()
	tickets := newFakeTicketRepo()
	return &catalogFixture{
		service: NewCatalogService(CatalogDependencies{
			CategoryRepo: categories,
			TicketRepo:   tickets,
		}),
		categories: categories,
		tickets:    tickets,
	}
}

func TestCatalogCreateAndValidation(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	category, err := fx.service.Create(ctx, CategoryInput{
		Name:            "  Billing  ",
		DefaultPriority: domain.TicketPriorityHigh,
		SLAHours:        12,
		IsActive:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Billing", category.Name)

	_, err = fx.service.Create(ctx, CategoryInput{
		DefaultPriority: domain.TicketPriorityHigh, SLAHours: 12, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.Create(ctx, CategoryInput{
		Name: "x", DefaultPriority: domain.TicketPriorityHigh, SLAHours: 0, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.Create(ctx, CategoryInput{
		Name: "x", DefaultPriority: domain.TicketPriority("critical"), SLAHours: 1, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestCatalogActiveListing(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	active := fx.categories.add(domain.Category{
		Name: "Billing", DefaultPriority: domain.TicketPriorityHigh, SLAHours: 12, IsActive: true,
	})
	retired := fx.categories.add(domain.Category{
		Name: "Legacy", DefaultPriority: domain.TicketPriorityLow, SLAHours: 72, IsActive: false,
	})

	listed, err := fx.service.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, active.ID, listed[0].ID)

	all, err := fx.service.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = fx.service.GetActive(ctx, retired.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = fx.service.GetActive(ctx, active.ID)
	assert.NoError(t, err)
}

func TestCatalogDeactivateIsIdempotent(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	category := fx.categories.add(domain.Category{
		Name: "Billing", DefaultPriority: domain.TicketPriorityHigh, SLAHours: 12, IsActive: true,
	})

	first, err := fx.service.Deactivate(ctx, category.ID)
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	second, err := fx.service.Deactivate(ctx, category.ID)
	require.NoError(t, err)
	assert.False(t, second.IsActive)
}

func TestCatalogDeleteRefusedWhileTicketsReference(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	category := fx.categories.add(domain.Category{
		Name: "Billing", DefaultPriority: domain.TicketPriorityHigh, SLAHours: 12, IsActive: true,
	})
	ticket := &domain.Ticket{
		RequesterID: "user-1", CategoryID: category.ID, Title: "t", Description: "d",
		Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityHigh,
	}
	require.NoError(t, fx.tickets.Create(ctx, ticket, nil, nil))

	err := fx.service.Delete(ctx, category.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	// A closed ticket no longer blocks deletion.
	fx.tickets.tickets[ticket.ID].Status = domain.TicketStatusClosed
	require.NoError(t, fx.service.Delete(ctx, category.ID))

	err = fx.service.Delete(ctx, category.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
