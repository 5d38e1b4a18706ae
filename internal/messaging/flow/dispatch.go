package flow

import (
	"context"
	"time"

	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
)

// dispatchTimeout bounds every scheduling side effect triggered from the
// conversation flow.
const dispatchTimeout = 10 * time.Second

// RescheduleDay selects the target day for a flow-triggered reschedule.
type RescheduleDay string

const (
	DayToday    RescheduleDay = "today"
	DayTomorrow RescheduleDay = "tomorrow"
)

// BookingService is the scheduling collaborator the dispatcher calls. The
// adapter over the scheduling module satisfies it.
type BookingService interface {
	RescheduleToDay(ctx context.Context, contactID uuid.UUID, day RescheduleDay) (time.Time, error)
	Cancel(ctx context.Context, contactID uuid.UUID) error
}

// Dispatcher executes the side effects a reconstructed conversation requests
// and folds the outcome back into a sendable script. Reconstruction itself
// stays pure; this is the only place the flow touches the outside world.
type Dispatcher struct {
	booking BookingService
	catalog *Catalog
	log     *logger.Logger
}

// NewDispatcher creates a dispatcher over the scheduling collaborator.
func NewDispatcher(booking BookingService, catalog *Catalog, log *logger.Logger) *Dispatcher {
	return &Dispatcher{booking: booking, catalog: catalog, log: log}
}

// Dispatch performs the pending action and returns the script to show: the
// success node with the real outcome rendered in, or the matching error node
// when the collaborator fails. The error is returned alongside for logging;
// the candidate is always usable.
func (d *Dispatcher) Dispatch(ctx context.Context, contactID uuid.UUID, action Action, rctx RenderContext) (Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	switch action.Kind {
	case ActionRescheduleToday, ActionRescheduleTomorrow:
		day := DayToday
		if action.Kind == ActionRescheduleTomorrow {
			day = DayTomorrow
		}
		newTime, err := d.booking.RescheduleToDay(ctx, contactID, day)
		if err != nil {
			d.log.Error("flow reschedule dispatch failed", "contactId", contactID, "day", day, "error", err)
			return d.renderNode(NodeRescheduleError, rctx), err
		}
		rctx.AppointmentAt = &newTime
		return d.renderNode(NodeMoveConfirmed, rctx), nil

	case ActionCancel:
		if err := d.booking.Cancel(ctx, contactID); err != nil {
			d.log.Error("flow cancel dispatch failed", "contactId", contactID, "error", err)
			return d.renderNode(NodeCancelError, rctx), err
		}
		return d.renderNode(NodeCancelConfirmed, rctx), nil
	}

	return d.renderNode(NodeHelp, rctx), nil
}

func (d *Dispatcher) renderNode(id NodeID, rctx RenderContext) Candidate {
	node, _ := d.catalog.Get(id)
	return Candidate{Node: node, Rendered: Render(node.Template, rctx)}
}
