package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeBooking struct {
	rescheduleTime time.Time
	rescheduleErr  error
	cancelErr      error
	lastDay        RescheduleDay
	cancelCalls    int
}

func (f *fakeBooking) RescheduleToDay(_ context.Context, _ uuid.UUID, day RescheduleDay) (time.Time, error) {
	f.lastDay = day
	return f.rescheduleTime, f.rescheduleErr
}

func (f *fakeBooking) Cancel(_ context.Context, _ uuid.UUID) error {
	f.cancelCalls++
	return f.cancelErr
}

func TestDispatch_RescheduleSuccess_RendersNewTime(t *testing.T) {
	newTime := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	booking := &fakeBooking{rescheduleTime: newTime}
	d := NewDispatcher(booking, DefaultCatalog(), logger.New("test"))

	candidate, err := d.Dispatch(context.Background(), uuid.New(), Action{Kind: ActionRescheduleToday}, RenderContext{Location: time.UTC})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.lastDay != DayToday {
		t.Fatalf("expected today target, got %s", booking.lastDay)
	}
	if candidate.Node.ID != NodeMoveConfirmed {
		t.Fatalf("expected move-confirmed node, got %s", candidate.Node.ID)
	}
	if !strings.Contains(candidate.Rendered, "2:00 PM") {
		t.Fatalf("expected the new time in the rendered script, got %q", candidate.Rendered)
	}
}

func TestDispatch_RescheduleFailure_RendersErrorNodeWithOriginalTime(t *testing.T) {
	booking := &fakeBooking{rescheduleErr: errors.New("no slots")}
	d := NewDispatcher(booking, DefaultCatalog(), logger.New("test"))
	original := time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)

	candidate, err := d.Dispatch(context.Background(), uuid.New(), Action{Kind: ActionRescheduleTomorrow},
		RenderContext{ContactName: "Ana", AppointmentAt: &original, Location: time.UTC})

	if err == nil {
		t.Fatal("expected the collaborator error to surface")
	}
	if candidate.Node.ID != NodeRescheduleError {
		t.Fatalf("expected reschedule-error node, got %s", candidate.Node.ID)
	}
	if !strings.Contains(candidate.Rendered, "Mar 12") {
		t.Fatalf("expected original time in error script, got %q", candidate.Rendered)
	}
}

func TestDispatch_CancelSuccessAndFailure(t *testing.T) {
	d := NewDispatcher(&fakeBooking{}, DefaultCatalog(), logger.New("test"))
	candidate, err := d.Dispatch(context.Background(), uuid.New(), Action{Kind: ActionCancel}, RenderContext{})
	if err != nil || candidate.Node.ID != NodeCancelConfirmed {
		t.Fatalf("expected cancel-confirmed, got node=%s err=%v", candidate.Node.ID, err)
	}

	d = NewDispatcher(&fakeBooking{cancelErr: errors.New("db down")}, DefaultCatalog(), logger.New("test"))
	candidate, err = d.Dispatch(context.Background(), uuid.New(), Action{Kind: ActionCancel}, RenderContext{})
	if err == nil || candidate.Node.ID != NodeCancelError {
		t.Fatalf("expected cancel-error, got node=%s err=%v", candidate.Node.ID, err)
	}
}
