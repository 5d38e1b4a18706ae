// Package service implements scheduling use cases: availability queries,
// booking, rescheduling and cancellation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	contactsrepo "clinic_engage_backend/internal/contacts/repository"
	"clinic_engage_backend/internal/events"
	"clinic_engage_backend/internal/messaging/flow"
	"clinic_engage_backend/internal/scheduling/repository"
	"clinic_engage_backend/internal/scheduling/transport"
	"clinic_engage_backend/platform/apperr"
	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
)

// ContactScheduler is the slice of the contacts service scheduling depends on.
type ContactScheduler interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*contactsrepo.Contact, error)
	SetAppointment(ctx context.Context, id uuid.UUID, at *time.Time, status *contactsrepo.AppointmentStatus) error
}

// ReminderScheduler enqueues appointment reminders for later delivery.
// A nil value disables reminders.
type ReminderScheduler interface {
	EnqueueAppointmentReminder(ctx context.Context, appointmentID uuid.UUID, remindAt time.Time) error
}

// Service handles scheduling operations.
type Service struct {
	repo      *repository.Repository
	contacts  ContactScheduler
	engine    *Engine
	bus       events.Bus
	reminders ReminderScheduler
	log       *logger.Logger
	now       func() time.Time
}

// New creates a scheduling service.
func New(repo *repository.Repository, contacts ContactScheduler, engine *Engine,
	bus events.Bus, reminders ReminderScheduler, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		contacts:  contacts,
		engine:    engine,
		bus:       bus,
		reminders: reminders,
		log:       log,
		now:       time.Now,
	}
}

// GetAvailability returns the slot list for one local calendar date. A failed
// booked-slot fetch yields an all-unavailable list rather than an error: the
// calendar stays rendered and no slot can be double-booked.
func (s *Service) GetAvailability(ctx context.Context, date string) (transport.AvailabilityResponse, error) {
	year, month, day, err := parseDate(date)
	if err != nil {
		return transport.AvailabilityResponse{}, err
	}

	template, err := s.repo.LoadWeeklyTemplate(ctx)
	if err != nil {
		return transport.AvailabilityResponse{}, err
	}

	blocked, blockCheckFailed := s.checkBlocked(ctx, year, month, day)
	if blocked {
		return transport.AvailabilityResponse{
			Date:       date,
			Selectable: false,
			Slots:      []transport.SlotResponse{},
		}, nil
	}

	nowUTC := s.now().UTC()
	booked, failClosed := s.fetchBooked(ctx, year, month, day)
	failClosed = failClosed || blockCheckFailed

	slots := s.engine.GenerateSlots(year, month, day, template, nowUTC, booked, failClosed)
	selectable := s.engine.IsDateSelectable(year, month, day, template, nowUTC, booked, !failClosed)

	resp := transport.AvailabilityResponse{
		Date:       date,
		Selectable: selectable && !failClosed,
		Slots:      make([]transport.SlotResponse, len(slots)),
	}
	for i, slot := range slots {
		resp.Slots[i] = transport.SlotResponse(slot)
	}
	return resp, nil
}

// GetSelectableDates reports bookability for the next two weeks of dates,
// enough to cover any business-day horizon within the calendar widget.
func (s *Service) GetSelectableDates(ctx context.Context) (transport.SelectableDatesResponse, error) {
	template, err := s.repo.LoadWeeklyTemplate(ctx)
	if err != nil {
		return transport.SelectableDatesResponse{}, err
	}

	nowUTC := s.now().UTC()
	nowLocal := nowUTC.In(s.engine.Location())

	blockedSet, blockCheckFailed := s.blockedSet(ctx, nowLocal)

	resp := transport.SelectableDatesResponse{Dates: make([]transport.DateSelectability, 0, 14)}
	for offset := 1; offset <= 14; offset++ {
		d := nowLocal.AddDate(0, 0, offset)
		year, month, day := d.Date()
		booked, failClosed := s.fetchBooked(ctx, year, month, day)
		selectable := !failClosed && !blockCheckFailed &&
			!blockedSet[d.Format("2006-01-02")] &&
			s.engine.IsDateSelectable(year, month, day, template, nowUTC, booked, true)
		resp.Dates = append(resp.Dates, transport.DateSelectability{
			Date:       d.Format("2006-01-02"),
			Selectable: selectable,
		})
	}
	return resp, nil
}

// Book creates an appointment in a currently-available slot. The slot is
// re-validated here and the unique index is the final arbiter under races.
func (s *Service) Book(ctx context.Context, req transport.BookAppointmentRequest) (transport.AppointmentResponse, error) {
	contact, err := s.contacts.GetEntity(ctx, req.ContactID)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}

	startUTC := req.StartUTC.UTC()
	if err := s.validateSlot(ctx, startUTC); err != nil {
		return transport.AppointmentResponse{}, err
	}

	saved, err := s.repo.Create(ctx, repository.Appointment{
		ID:          uuid.New(),
		ContactID:   contact.ID,
		ScheduledAt: startUTC,
		Timezone:    s.engine.Location().String(),
		CancelToken: uuid.New(),
	})
	if err != nil {
		return transport.AppointmentResponse{}, err
	}

	s.mirrorToContact(ctx, contact.ID, &saved.ScheduledAt, contactsrepo.AppointmentScheduled)
	s.scheduleReminder(ctx, saved)

	s.bus.Publish(ctx, events.AppointmentBooked{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: saved.ID,
		ContactID:     contact.ID,
		ContactName:   contact.Name,
		ContactPhone:  contact.Phone,
		ScheduledAt:   saved.ScheduledAt,
		Timezone:      saved.Timezone,
	})
	return toResponse(saved), nil
}

// Reschedule moves an appointment to a new validated slot.
func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, req transport.RescheduleAppointmentRequest) (transport.AppointmentResponse, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.AppointmentResponse{}, apperr.NotFound("appointment not found")
		}
		return transport.AppointmentResponse{}, err
	}
	if appt.Status != repository.StatusScheduled {
		return transport.AppointmentResponse{}, apperr.Validation("only scheduled appointments can be rescheduled")
	}

	startUTC := req.StartUTC.UTC()
	if err := s.validateSlot(ctx, startUTC); err != nil {
		return transport.AppointmentResponse{}, err
	}

	moved, err := s.repo.Move(ctx, appt.ID, startUTC)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}

	s.mirrorToContact(ctx, moved.ContactID, &moved.ScheduledAt, contactsrepo.AppointmentScheduled)
	s.scheduleReminder(ctx, moved)

	s.bus.Publish(ctx, events.AppointmentRescheduled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: moved.ID,
		ContactID:     moved.ContactID,
		PreviousAt:    appt.ScheduledAt,
		ScheduledAt:   moved.ScheduledAt,
	})
	return toResponse(moved), nil
}

// CancelAppointment cancels by appointment id.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("appointment not found")
		}
		return err
	}
	return s.cancel(ctx, appt)
}

// RescheduleToDay moves a contact's scheduled appointment to the first
// available slot on today or tomorrow. This is the conversation flow's
// reschedule branch.
func (s *Service) RescheduleToDay(ctx context.Context, contactID uuid.UUID, day flow.RescheduleDay) (time.Time, error) {
	appt, err := s.repo.GetScheduledByContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, apperr.NotFound("contact has no scheduled appointment")
		}
		return time.Time{}, err
	}

	nowLocal := s.now().In(s.engine.Location())
	target := nowLocal
	if day == flow.DayTomorrow {
		target = nowLocal.AddDate(0, 0, 1)
	}

	slot, err := s.firstAvailableSlot(ctx, target)
	if err != nil {
		return time.Time{}, err
	}

	moved, err := s.repo.Move(ctx, appt.ID, slot)
	if err != nil {
		return time.Time{}, err
	}

	s.mirrorToContact(ctx, contactID, &moved.ScheduledAt, contactsrepo.AppointmentScheduled)
	s.bus.Publish(ctx, events.AppointmentRescheduled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: moved.ID,
		ContactID:     contactID,
		PreviousAt:    appt.ScheduledAt,
		ScheduledAt:   moved.ScheduledAt,
	})
	return moved.ScheduledAt, nil
}

// Cancel cancels a contact's scheduled appointment. This is the conversation
// flow's cancel branch.
func (s *Service) Cancel(ctx context.Context, contactID uuid.UUID) error {
	appt, err := s.repo.GetScheduledByContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("contact has no scheduled appointment")
		}
		return err
	}
	return s.cancel(ctx, appt)
}

// GetAppointmentEntity returns the raw appointment row. Used by the scheduler
// worker to re-check state before acting on a queued task.
func (s *Service) GetAppointmentEntity(ctx context.Context, id uuid.UUID) (*repository.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, err
	}
	return appt, nil
}

// GetWeeklyTemplate returns the recurring availability template.
func (s *Service) GetWeeklyTemplate(ctx context.Context) (transport.WeeklyTemplateResponse, error) {
	template, err := s.repo.LoadWeeklyTemplate(ctx)
	if err != nil {
		return transport.WeeklyTemplateResponse{}, err
	}

	resp := transport.WeeklyTemplateResponse{Windows: make(map[int][]transport.WindowResponse)}
	for day, windows := range template {
		for _, w := range windows {
			resp.Windows[int(day)] = append(resp.Windows[int(day)], transport.WindowResponse{
				Start: formatMinutes(w.StartMinutes),
				End:   formatMinutes(w.EndMinutes),
			})
		}
	}
	return resp, nil
}

// UpdateWeeklyTemplate replaces the recurring availability template.
func (s *Service) UpdateWeeklyTemplate(ctx context.Context, req transport.UpdateTemplateRequest) error {
	template := make(repository.WeeklyTemplate)
	for day, windows := range req.Windows {
		if day < 0 || day > 6 {
			return apperr.Validation("weekday must be 0-6")
		}
		for _, w := range windows {
			start, err := parseMinutes(w.Start)
			if err != nil {
				return apperr.Validation("invalid window start time")
			}
			end, err := parseMinutes(w.End)
			if err != nil {
				return apperr.Validation("invalid window end time")
			}
			if end <= start {
				return apperr.Validation("window end must be after start")
			}
			template[time.Weekday(day)] = append(template[time.Weekday(day)],
				repository.Window{StartMinutes: start, EndMinutes: end})
		}
	}
	return s.repo.ReplaceWeeklyTemplate(ctx, template)
}

// ListBlockedDates returns upcoming date-specific calendar closures.
func (s *Service) ListBlockedDates(ctx context.Context) (transport.BlockedDatesResponse, error) {
	today := s.now().In(s.engine.Location())
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	dates, err := s.repo.ListBlockedDates(ctx, from)
	if err != nil {
		return transport.BlockedDatesResponse{}, err
	}

	resp := transport.BlockedDatesResponse{Dates: make([]transport.BlockedDateResponse, len(dates))}
	for i, d := range dates {
		resp.Dates[i] = transport.BlockedDateResponse{
			Date:      d.Day.Format("2006-01-02"),
			Reason:    d.Reason,
			CreatedAt: d.CreatedAt,
		}
	}
	return resp, nil
}

// BlockDate closes one calendar date for booking. Existing appointments on the
// date are untouched; the closure only stops new bookings.
func (s *Service) BlockDate(ctx context.Context, req transport.BlockDateRequest) error {
	year, month, day, err := parseDate(req.Date)
	if err != nil {
		return err
	}
	return s.repo.BlockDate(ctx, time.Date(year, month, day, 0, 0, 0, 0, time.UTC), req.Reason)
}

// UnblockDate reopens a blocked calendar date.
func (s *Service) UnblockDate(ctx context.Context, date string) error {
	year, month, day, err := parseDate(date)
	if err != nil {
		return err
	}
	err = s.repo.UnblockDate(ctx, time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("date is not blocked")
	}
	return err
}

func (s *Service) cancel(ctx context.Context, appt *repository.Appointment) error {
	if err := s.repo.SetStatus(ctx, appt.ID, repository.StatusCancelled); err != nil {
		return err
	}

	s.mirrorToContact(ctx, appt.ContactID, &appt.ScheduledAt, contactsrepo.AppointmentCancelled)
	s.bus.Publish(ctx, events.AppointmentCancelled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		ContactID:     appt.ContactID,
		ScheduledAt:   appt.ScheduledAt,
	})
	return nil
}

// validateSlot confirms the requested instant is a currently available slot.
func (s *Service) validateSlot(ctx context.Context, startUTC time.Time) error {
	local := startUTC.In(s.engine.Location())
	year, month, day := local.Date()

	template, err := s.repo.LoadWeeklyTemplate(ctx)
	if err != nil {
		return err
	}
	blocked, blockCheckFailed := s.checkBlocked(ctx, year, month, day)
	if blockCheckFailed {
		return apperr.Unavailable("availability could not be confirmed")
	}
	if blocked {
		return apperr.Validation("requested date is not open for booking")
	}

	booked, failClosed := s.fetchBooked(ctx, year, month, day)
	if failClosed {
		return apperr.Unavailable("availability could not be confirmed")
	}

	for _, slot := range s.engine.GenerateSlots(year, month, day, template, s.now().UTC(), booked, false) {
		if slot.StartUTC.Equal(startUTC) {
			if !slot.Available {
				return apperr.Conflict("slot is no longer available")
			}
			return nil
		}
	}
	return apperr.Validation("requested time is not a bookable slot")
}

func (s *Service) firstAvailableSlot(ctx context.Context, localDate time.Time) (time.Time, error) {
	year, month, day := localDate.Date()

	template, err := s.repo.LoadWeeklyTemplate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	blocked, blockCheckFailed := s.checkBlocked(ctx, year, month, day)
	if blockCheckFailed {
		return time.Time{}, apperr.Unavailable("availability could not be confirmed")
	}
	if blocked {
		return time.Time{}, apperr.Conflict("no available slots on the requested day")
	}

	booked, failClosed := s.fetchBooked(ctx, year, month, day)
	if failClosed {
		return time.Time{}, apperr.Unavailable("availability could not be confirmed")
	}

	for _, slot := range s.engine.GenerateSlots(year, month, day, template, s.now().UTC(), booked, false) {
		if slot.Available {
			return slot.StartUTC, nil
		}
	}
	return time.Time{}, apperr.Conflict("no available slots on the requested day")
}

// fetchBooked loads booked intervals for one local date. On failure it
// reports failClosed=true so every slot renders unavailable.
func (s *Service) fetchBooked(ctx context.Context, year int, month time.Month, day int) ([]Interval, bool) {
	from := time.Date(year, month, day, 0, 0, 0, 0, s.engine.Location())
	to := from.AddDate(0, 0, 1)

	instants, err := s.repo.ListBookedBetween(ctx, from.UTC(), to.UTC())
	if err != nil {
		s.log.DatabaseError("fetch booked slots", err)
		return nil, true
	}

	intervals := make([]Interval, len(instants))
	for i, at := range instants {
		intervals[i] = Interval{Start: at, End: at.Add(s.engine.Granularity())}
	}
	return intervals, false
}

// checkBlocked reports whether a date-specific override closes the day. A
// failed check reports failClosed=true like a failed booked-slot fetch.
func (s *Service) checkBlocked(ctx context.Context, year int, month time.Month, day int) (blocked, failClosed bool) {
	blocked, err := s.repo.IsDateBlocked(ctx, time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	if err != nil {
		s.log.DatabaseError("check blocked date", err)
		return false, true
	}
	return blocked, false
}

// blockedSet loads upcoming closures keyed by local date string.
func (s *Service) blockedSet(ctx context.Context, nowLocal time.Time) (map[string]bool, bool) {
	from := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, time.UTC)

	dates, err := s.repo.ListBlockedDates(ctx, from)
	if err != nil {
		s.log.DatabaseError("list blocked dates", err)
		return nil, true
	}

	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[d.Day.Format("2006-01-02")] = true
	}
	return set, false
}

// mirrorToContact keeps the contact aggregate's appointment snapshot in sync.
// Failure is logged, not surfaced: the appointment row is the source of truth.
func (s *Service) mirrorToContact(ctx context.Context, contactID uuid.UUID, at *time.Time, status contactsrepo.AppointmentStatus) {
	if err := s.contacts.SetAppointment(ctx, contactID, at, &status); err != nil {
		s.log.DatabaseError("mirror appointment to contact", err)
	}
}

func (s *Service) scheduleReminder(ctx context.Context, appt *repository.Appointment) {
	if s.reminders == nil {
		return
	}
	remindAt := appt.ScheduledAt.Add(-24 * time.Hour)
	if remindAt.Before(s.now()) {
		return
	}
	if err := s.reminders.EnqueueAppointmentReminder(ctx, appt.ID, remindAt); err != nil {
		s.log.Error("failed to enqueue appointment reminder", "appointmentId", appt.ID, "error", err)
	}
}

func toResponse(a *repository.Appointment) transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:          a.ID,
		ContactID:   a.ContactID,
		ScheduledAt: a.ScheduledAt,
		Timezone:    a.Timezone,
		Status:      string(a.Status),
		CancelToken: a.CancelToken,
		CreatedAt:   a.CreatedAt,
	}
}

func parseDate(date string) (int, time.Month, int, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, 0, apperr.Validation("date must be YYYY-MM-DD")
	}
	year, month, day := parsed.Date()
	return year, month, day, nil
}

func parseMinutes(clock string) (int, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
