package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
)

// publishEvent stamps identity, actor and time onto an event and hands it
// to the dispatcher. Dispatch failures never fail the triggering
// operation.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, principal domain.Principal, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	event.Actor = events.Actor{UserID: principal.UserID, Role: principal.Role}
	_ = dispatcher.Publish(ctx, event)
}
