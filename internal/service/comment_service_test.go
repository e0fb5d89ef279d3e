package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

type commentFixture struct {
	service    *CommentService
	comments   *fakeCommentRepo
	tickets    *fakeTicketRepo
	history    *fakeHistoryRepo
	dispatcher *capturingDispatcher
	ticket     *domain.Ticket
	requester  domain.Principal
	agent      domain.Principal
	admin      domain.Principal
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	comments := newFakeCommentRepo()
	tickets := newFakeTicketRepo()
	history := &fakeHistoryRepo{}
	dispatcher := &capturingDispatcher{}

	ticket := &domain.Ticket{
		RequesterID: "user-1",
		CategoryID:  "category-1",
		Title:       "Printer on fire",
		Description: "Smoke coming out of the tray",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket, nil, nil))

	return &commentFixture{
		service: NewCommentService(CommentDependencies{
			CommentRepo: comments,
			TicketRepo:  tickets,
			HistoryRepo: history,
			Dispatcher:  dispatcher,
			Clock:       func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
		}),
		comments:   comments,
		tickets:    tickets,
		history:    history,
		dispatcher: dispatcher,
		ticket:     ticket,
		requester:  domain.Principal{UserID: "user-1", Role: domain.RoleUser},
		agent:      domain.Principal{UserID: "agent-1", Role: domain.RoleAgent},
		admin:      domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin},
	}
}

func TestAddComment(t *testing.T) {
	fx := newCommentFixture(t)

	comment, err := fx.service.Add(context.Background(), fx.requester, fx.ticket.ID, "  Any update?  ", false)
	require.NoError(t, err)
	assert.Equal(t, "Any update?", comment.Body)
	assert.Equal(t, domain.RoleUser, comment.AuthorRole)
	assert.False(t, comment.Internal)

	added := fx.dispatcher.byType(events.EventTicketCommentAdded)
	require.Len(t, added, 1)
}

func TestAddCommentValidation(t *testing.T) {
	fx := newCommentFixture(t)
	ctx := context.Background()

	_, err := fx.service.Add(ctx, fx.requester, fx.ticket.ID, "   ", false)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.Add(ctx, fx.requester, "missing", "hello", false)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestEndUserCannotPostInternalNote(t *testing.T) {
	fx := newCommentFixture(t)

	_, err := fx.service.Add(context.Background(), fx.requester, fx.ticket.ID, "secret", true)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestStrangerCannotComment(t *testing.T) {
	fx := newCommentFixture(t)

	stranger := domain.Principal{UserID: "user-2", Role: domain.RoleUser}
	_, err := fx.service.Add(context.Background(), stranger, fx.ticket.ID, "hello", false)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestClosedTicketRejectsComments(t *testing.T) {
	fx := newCommentFixture(t)
	fx.tickets.tickets[fx.ticket.ID].Status = domain.TicketStatusClosed

	_, err := fx.service.Add(context.Background(), fx.agent, fx.ticket.ID, "too late", false)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTerminalState))
}

func TestInternalNotesFilteredForEndUsers(t *testing.T) {
	fx := newCommentFixture(t)
	ctx := context.Background()

	_, err := fx.service.Add(ctx, fx.requester, fx.ticket.ID, "Any update?", false)
	require.NoError(t, err)
	_, err = fx.service.Add(ctx, fx.agent, fx.ticket.ID, "Customer is on legacy plan", true)
	require.NoError(t, err)
	_, err = fx.service.Add(ctx, fx.agent, fx.ticket.ID, "Looking into it now", false)
	require.NoError(t, err)

	visible, err := fx.service.List(ctx, fx.requester, fx.ticket.ID)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	for _, comment := range visible {
		assert.False(t, comment.Internal)
	}

	all, err := fx.service.List(ctx, fx.agent, fx.ticket.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteCommentAdminOnly(t *testing.T) {
	fx := newCommentFixture(t)
	ctx := context.Background()

	comment, err := fx.service.Add(ctx, fx.agent, fx.ticket.ID, "typo", false)
	require.NoError(t, err)

	err = fx.service.Delete(ctx, fx.agent, fx.ticket.ID, comment.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	require.NoError(t, fx.service.Delete(ctx, fx.admin, fx.ticket.ID, comment.ID))

	err = fx.service.Delete(ctx, fx.admin, fx.ticket.ID, comment.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	// A comment id paired with a different ticket id does not match.
	other, err := fx.service.Add(ctx, fx.agent, fx.ticket.ID, "keep", false)
	require.NoError(t, err)
	err = fx.service.Delete(ctx, fx.admin, "other-ticket", other.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveWithComment(t *testing.T) {
	fx := newCommentFixture(t)
	ctx := context.Background()

	resolved, err := fx.service.ResolveWithComment(ctx, fx.agent, fx.ticket.ID,
		domain.TicketStatusResolved, "Replaced the fuser unit")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, "Replaced the fuser unit", *resolved.Resolution)
	assert.NotNil(t, resolved.ResolvedAt)

	assert.Len(t, fx.history.byType(domain.ChangeTypeStatus), 1)
	assert.Len(t, fx.dispatcher.byType(events.EventTicketCommentAdded), 1)
	assert.Len(t, fx.dispatcher.byType(events.EventTicketStatusChanged), 1)
}

func TestResolveWithCommentValidation(t *testing.T) {
	fx := newCommentFixture(t)
	ctx := context.Background()

	_, err := fx.service.ResolveWithComment(ctx, fx.requester, fx.ticket.ID,
		domain.TicketStatusResolved, "text")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = fx.service.ResolveWithComment(ctx, fx.agent, fx.ticket.ID,
		domain.TicketStatusPending, "text")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.ResolveWithComment(ctx, fx.agent, fx.ticket.ID,
		domain.TicketStatusResolved, "   ")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	fx.tickets.tickets[fx.ticket.ID].Status = domain.TicketStatusClosed
	_, err = fx.service.ResolveWithComment(ctx, fx.agent, fx.ticket.ID,
		domain.TicketStatusResolved, "text")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTerminalState))
}

func TestResolveWithCommentConcurrentConflict(t *testing.T) {
	fx := newCommentFixture(t)
	stale := &staleTicketRepo{TicketRepository: fx.tickets}
	service := NewCommentService(CommentDependencies{
		CommentRepo: fx.comments,
		TicketRepo:  stale,
		HistoryRepo: fx.history,
		Dispatcher:  fx.dispatcher,
	})

	_, err := service.ResolveWithComment(context.Background(), fx.agent, fx.ticket.ID,
		domain.TicketStatusResolved, "done")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConcurrencyConflict))
	assert.Empty(t, fx.history.byType(domain.ChangeTypeStatus))
}
