package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

type satisfactionFixture struct {
	service    *SatisfactionService
	tickets    *fakeTicketRepo
	history    *fakeHistoryRepo
	dispatcher *capturingDispatcher
	ticket     *domain.Ticket
	requester  domain.Principal
}

func newSatisfactionFixture(t *testing.T, status domain.TicketStatus) *satisfactionFixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	history := &fakeHistoryRepo{}
	dispatcher := &capturingDispatcher{}

	ticket := &domain.Ticket{
		RequesterID: "user-1",
		CategoryID:  "category-1",
		Title:       "Printer on fire",
		Description: "Smoke coming out of the tray",
		Status:      status,
		Priority:    domain.TicketPriorityMedium,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket, nil, nil))

	return &satisfactionFixture{
		service: NewSatisfactionService(SatisfactionDependencies{
			TicketRepo:  tickets,
			HistoryRepo: history,
			Dispatcher:  dispatcher,
		}),
		tickets:    tickets,
		history:    history,
		dispatcher: dispatcher,
		ticket:     ticket,
		requester:  domain.Principal{UserID: "user-1", Role: domain.RoleUser},
	}
}

func TestSubmitRatingClosesTicket(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusResolved)

	rated, err := fx.service.SubmitRating(context.Background(), fx.requester, fx.ticket.ID, 4, "  quick fix  ")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, rated.Status)
	require.NotNil(t, rated.SatisfactionRating)
	assert.Equal(t, 4, *rated.SatisfactionRating)
	require.NotNil(t, rated.SatisfactionComment)
	assert.Equal(t, "quick fix", *rated.SatisfactionComment)

	stored := fx.tickets.tickets[fx.ticket.ID]
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)

	assert.Len(t, fx.history.byType(domain.ChangeTypeRating), 1)
	assert.Len(t, fx.dispatcher.byType(events.EventTicketRated), 1)
}

func TestSubmitRatingBounds(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusResolved)
	ctx := context.Background()

	for _, rating := range []int{0, 6, -1} {
		_, err := fx.service.SubmitRating(ctx, fx.requester, fx.ticket.ID, rating, "")
		assert.Truef(t, apperrors.IsCode(err, apperrors.CodeValidationFailed), "rating %d", rating)
	}
}

func TestSubmitRatingRequesterOnly(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusResolved)
	ctx := context.Background()

	agent := domain.Principal{UserID: "agent-1", Role: domain.RoleAgent}
	_, err := fx.service.SubmitRating(ctx, agent, fx.ticket.ID, 5, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	stranger := domain.Principal{UserID: "user-2", Role: domain.RoleUser}
	_, err = fx.service.SubmitRating(ctx, stranger, fx.ticket.ID, 5, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestSubmitRatingNotResolved(t *testing.T) {
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusPending,
	} {
		fx := newSatisfactionFixture(t, status)
		_, err := fx.service.SubmitRating(context.Background(), fx.requester, fx.ticket.ID, 5, "")
		assert.Truef(t, apperrors.IsCode(err, apperrors.CodeValidationFailed), "status %s", status)
	}
}

func TestSubmitRatingAlreadyRated(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusResolved)
	ctx := context.Background()

	_, err := fx.service.SubmitRating(ctx, fx.requester, fx.ticket.ID, 5, "")
	require.NoError(t, err)

	_, err = fx.service.SubmitRating(ctx, fx.requester, fx.ticket.ID, 3, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAlreadyRated))
}

func TestSubmitRatingClosedWithoutRating(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusClosed)

	_, err := fx.service.SubmitRating(context.Background(), fx.requester, fx.ticket.ID, 5, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTerminalState))
}

func TestSubmitRatingMissingTicket(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusResolved)

	_, err := fx.service.SubmitRating(context.Background(), fx.requester, "missing", 5, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestSubmitRatingBlankCommentStoredAsNull(t *testing.T) {
	fx := newSatisfactionFixture(t, domain.TicketStatusResolved)

	rated, err := fx.service.SubmitRating(context.Background(), fx.requester, fx.ticket.ID, 5, "   ")
	require.NoError(t, err)
	assert.Nil(t, rated.SatisfactionComment)
}
