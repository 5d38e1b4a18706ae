package scheduler

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clinic_engage_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	url      string
	interval time.Duration
}

func (c testSchedulerConfig) GetRedisURL() string                    { return c.url }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool              { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string              { return "clinic" }
func (c testSchedulerConfig) GetAsynqConcurrency() int               { return 2 }
func (c testSchedulerConfig) GetFallbackSweepInterval() time.Duration { return c.interval }

func TestClient_EnqueueAppointmentReminder(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{url: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	apptID := uuid.New()
	remindAt := time.Now().Add(24 * time.Hour)
	if err := client.EnqueueAppointmentReminder(context.Background(), apptID, remindAt); err != nil {
		t.Fatalf("EnqueueAppointmentReminder: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListScheduledTasks("clinic")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(tasks))
	}
	if tasks[0].Type != TaskAppointmentReminder {
		t.Fatalf("unexpected task type %q", tasks[0].Type)
	}

	payload, err := ParseAppointmentReminderPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.AppointmentID != apptID.String() {
		t.Fatalf("payload appointment id = %q, want %q", payload.AppointmentID, apptID)
	}
}

func TestNewClient_RequiresRedisURL(t *testing.T) {
	_, err := NewClient(testSchedulerConfig{})
	if err == nil || !strings.Contains(err.Error(), "redis url") {
		t.Fatalf("expected redis url error, got %v", err)
	}
}

type countingRetrier struct {
	calls atomic.Int32
}

func (r *countingRetrier) RetrySweep(context.Context, int) (int, int, error) {
	r.calls.Add(1)
	return 0, 0, nil
}

func TestFallbackSweeper_RunsUntilCancelled(t *testing.T) {
	retrier := &countingRetrier{}
	sweeper := NewFallbackSweeper(testSchedulerConfig{interval: 5 * time.Millisecond}, retrier, logger.New("test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for retrier.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
