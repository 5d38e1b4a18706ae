package scheduler

import (
	"context"
	"fmt"

	schedrepo "clinic_engage_backend/internal/scheduling/repository"
	"clinic_engage_backend/platform/apperr"
	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// AppointmentReader loads appointments so a queued reminder can re-check
// state before sending.
type AppointmentReader interface {
	GetAppointmentEntity(ctx context.Context, id uuid.UUID) (*schedrepo.Appointment, error)
}

// ReminderSender sends the reminder script to a contact.
type ReminderSender interface {
	SendAppointmentReminder(ctx context.Context, contactID uuid.UUID) error
}

// Worker consumes scheduled tasks from the asynq queue.
type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	appointments AppointmentReader
	messenger    ReminderSender
	log          *logger.Logger
}

// NewWorker creates an asynq worker bound to the configured Redis queue.
func NewWorker(cfg config.SchedulerConfig, appointments AppointmentReader,
	messenger ReminderSender, log *logger.Logger) (*Worker, error) {

	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:       server,
		mux:          mux,
		appointments: appointments,
		messenger:    messenger,
		log:          log,
	}

	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAppointmentReminder sends the reminder script for a still-scheduled
// appointment. Reminders for moved or cancelled appointments are dropped: the
// queued task is stale, not an error.
func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return err
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return err
	}

	appt, err := w.appointments.GetAppointmentEntity(ctx, apptID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	if appt.Status != schedrepo.StatusScheduled {
		w.log.Debug("skipping reminder for inactive appointment",
			"appointmentId", appt.ID, "status", appt.Status)
		return nil
	}

	return w.messenger.SendAppointmentReminder(ctx, appt.ContactID)
}
