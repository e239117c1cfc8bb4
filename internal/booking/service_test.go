package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digihealth/clinic-scheduler/internal/policy"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

// memRepo is an in-memory Repository with the same CAS semantics as the
// postgres implementation.
type memRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
	appts    map[uuid.UUID]*Appointment
	events   []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
		appts:    make(map[uuid.UUID]*Appointment),
	}
}

func (r *memRepo) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ClearPatientOnboarding(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.OnboardingPending = false
	return nil
}

func (r *memRepo) ActiveTimes(_ context.Context, doctorID uuid.UUID, date time.Time, exceptID uuid.UUID) ([]schedule.TimeOfDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schedule.TimeOfDay
	for _, a := range r.appts {
		if a.DoctorID == doctorID && a.Date.Equal(midnight(date)) && a.Active() && a.ID != exceptID {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appts {
		if a.DoctorID == appt.DoctorID && a.Date.Equal(appt.Date) && a.Time == appt.Time && a.Active() {
			return nil, ErrDuplicateSlot
		}
	}
	cp := *appt
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, cancelledBy *Actor, cancelledAt *time.Time, noteAppend string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.CancelledBy = cancelledBy
	a.CancelledAt = cancelledAt
	if noteAppend != "" {
		if a.Notes != "" {
			a.Notes += "\n\n"
		}
		a.Notes += noteAppend
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateDetails(_ context.Context, id uuid.UUID, fields DetailUpdate) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if fields.Reason != nil {
		a.Reason = *fields.Reason
	}
	if fields.Notes != nil {
		a.Notes = *fields.Notes
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *memRepo) MoveSlot(_ context.Context, id uuid.UUID, status Status, newDate time.Time, newTime schedule.TimeOfDay) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != status {
		return nil, ErrAppointmentNotFound
	}
	for _, other := range r.appts {
		if other.ID != id && other.DoctorID == a.DoctorID && other.Date.Equal(newDate) && other.Time == newTime && other.Active() {
			return nil, ErrDuplicateSlot
		}
	}
	a.Date = newDate
	a.Time = newTime
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if a.DoctorID != doctorID {
			continue
		}
		if from != nil && a.Date.Before(*from) {
			continue
		}
		if to != nil && a.Date.After(*to) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *memRepo) SummaryForDoctor(_ context.Context, doctorID uuid.UUID, day time.Time) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Summary
	s.TotalPatients = int64(len(r.patients))
	for _, a := range r.appts {
		if a.DoctorID != doctorID || !a.Date.Equal(day) {
			continue
		}
		switch a.Status {
		case StatusPending:
			s.TodayPending++
		case StatusConfirmed:
			s.TodayConfirmed++
		case StatusCompleted:
			s.TodayCompleted++
		}
	}
	return s, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

// memLocker serializes critical sections per key the way the redis lock
// does, without a redis.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) WithScheduleLock(ctx context.Context, doctorID uuid.UUID, date string, fn func(ctx context.Context) error) error {
	key := doctorID.String() + ":" + date
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type memSchedules struct {
	template schedule.WeeklyTemplate
}

func (s *memSchedules) TemplateForDoctor(context.Context, uuid.UUID) (schedule.WeeklyTemplate, error) {
	return s.template, nil
}

func (s *memSchedules) ReplaceTemplate(_ context.Context, _ uuid.UUID, template schedule.WeeklyTemplate) error {
	s.template = template
	return nil
}

type memPolicies struct {
	mu  sync.Mutex
	pol policy.Policy
}

func (s *memPolicies) Get(context.Context) (policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pol, nil
}

func (s *memPolicies) Update(_ context.Context, p policy.Policy) (policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pol = p
	return p, nil
}

// chanPublisher records published kinds; buffered so the async publish
// goroutine never blocks the test.
type chanPublisher struct {
	ch chan string
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{ch: make(chan string, 64)}
}

func (p *chanPublisher) PublishAppointment(kind string, _ *Appointment) {
	p.ch <- kind
}

func (p *chanPublisher) waitFor(t *testing.T, kind string) {
	t.Helper()
	select {
	case got := <-p.ch:
		assert.Equal(t, kind, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s event published", kind)
	}
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	policies  *memPolicies
	publisher *chanPublisher
	doctorID  uuid.UUID
	patientID uuid.UUID
	now       time.Time
}

// newFixture pins now to a Monday morning so the default Mon-Fri template
// applies and same-day math is predictable.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	doctorID := uuid.New()
	patientID := uuid.New()
	repo.doctors[doctorID] = &Doctor{ID: doctorID, Name: "Dr. Chen"}
	repo.patients[patientID] = &Patient{ID: patientID, Name: "Ada Park", OnboardingPending: true}

	policies := &memPolicies{pol: policy.Default()}
	publisher := newChanPublisher()

	svc := NewService(
		repo,
		newMemLocker(),
		&memSchedules{template: schedule.DefaultTemplate()},
		policies,
		publisher,
		nil,
		logging.Default(),
	)

	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC) // Monday
	svc.Now = func() time.Time { return now }

	return &fixture{
		svc:       svc,
		repo:      repo,
		policies:  policies,
		publisher: publisher,
		doctorID:  doctorID,
		patientID: patientID,
		now:       now,
	}
}

func (f *fixture) tomorrow() time.Time {
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) // Tuesday
}

func mustTime(t *testing.T, s string) schedule.TimeOfDay {
	t.Helper()
	tod, err := schedule.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func TestReserveHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "checkup")
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "2026-03-10", appt.DateString())
	assert.Equal(t, "10:00", appt.TimeString())
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Equal(t, "checkup", appt.Reason)

	f.publisher.waitFor(t, EventAppointmentBooked)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentBooked)
}

func TestReservePendingWhenAutoConfirmOff(t *testing.T) {
	f := newFixture(t)
	pol := policy.Default()
	pol.AutoConfirmAppointments = false
	_, err := f.policies.Update(context.Background(), pol)
	require.NoError(t, err)

	appt, err := f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestReserveClearsOnboardingFlag(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	p, err := f.repo.GetPatient(context.Background(), f.patientID)
	require.NoError(t, err)
	assert.False(t, p.OnboardingPending)
}

func TestReserveConflictOnTakenSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := mustTime(t, "10:00")

	_, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), slot, f.patientID, "")
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), slot, f.patientID, "")
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	slot := mustTime(t, "14:00")

	const racers = 16
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), slot, f.patientID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}

func TestReserveRejectsOffGridSlot(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), mustTime(t, "10:10"), f.patientID, "")
	assert.ErrorIs(t, err, ErrSlotInvalid)
}

func TestReserveRejectsOutsideWorkWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), mustTime(t, "18:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrSlotInvalid)
}

func TestReservePolicyBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	// Same-day slot inside the 2h minimum advance.
	_, err := f.svc.Reserve(ctx, f.doctorID, today, mustTime(t, "10:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// Beyond the 30 day horizon.
	farOut := today.AddDate(0, 0, 31)
	_, err = f.svc.Reserve(ctx, f.doctorID, farOut, mustTime(t, "10:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// Past date.
	_, err = f.svc.Reserve(ctx, f.doctorID, today.AddDate(0, 0, -1), mustTime(t, "10:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestReserveLocalClockWestOfClinicDate(t *testing.T) {
	f := newFixture(t)
	pol := policy.Default()
	pol.AllowSameDayBooking = false
	_, err := f.policies.Update(context.Background(), pol)
	require.NoError(t, err)

	// Monday 04:00 in UTC-5 is Monday 09:00 clinic time; a UTC-anchored
	// Tuesday is one day ahead, not same-day, regardless of the server's
	// wall-clock offset.
	local := time.FixedZone("UTC-5", -5*3600)
	f.svc.Now = func() time.Time { return time.Date(2026, 3, 9, 4, 0, 0, 0, local) }

	appt, err := f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
}

func TestReserveSameDayDisallowed(t *testing.T) {
	f := newFixture(t)
	pol := policy.Default()
	pol.AllowSameDayBooking = false
	_, err := f.policies.Update(context.Background(), pol)
	require.NoError(t, err)

	today := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Reserve(context.Background(), f.doctorID, today, mustTime(t, "15:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestReserveMaintenanceMode(t *testing.T) {
	f := newFixture(t)
	pol := policy.Default()
	pol.MaintenanceMode = true
	_, err := f.policies.Update(context.Background(), pol)
	require.NoError(t, err)

	_, err = f.svc.Reserve(context.Background(), f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrMaintenanceMode)
}

func TestReserveUnknownParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, uuid.New(), f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), uuid.New(), "")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestBookedSlotLeavesAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := mustTime(t, "11:30")

	before, err := f.svc.Availability(ctx, f.doctorID, f.tomorrow())
	require.NoError(t, err)
	assert.Contains(t, before, slot)

	_, err = f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), slot, f.patientID, "")
	require.NoError(t, err)

	after, err := f.svc.Availability(ctx, f.doctorID, f.tomorrow())
	require.NoError(t, err)
	assert.NotContains(t, after, slot)
	assert.Len(t, after, len(before)-1)
}

func TestCancelRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := mustTime(t, "11:30")

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), slot, f.patientID, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, ActorStaff, "")
	require.NoError(t, err)

	avail, err := f.svc.Availability(ctx, f.doctorID, f.tomorrow())
	require.NoError(t, err)
	assert.Contains(t, avail, slot)
}

func TestPatientCancelInsideDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 10:00 tomorrow is 25h out; move the clock so only 20h remain.
	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	f.svc.Now = func() time.Time {
		return time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	}

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, ActorPatient, "")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// Staff overrides the deadline, and the reason lands in the notes.
	updated, err := f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, ActorStaff, "doctor unavailable")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelledBy)
	assert.Equal(t, ActorStaff, *updated.CancelledBy)
	assert.NotNil(t, updated.CancelledAt)
	assert.True(t, strings.Contains(updated.Notes, "Cancellation reason: doctor unavailable"))
}

func TestPatientCancelOutsideDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// One week out is well past the 24h deadline.
	date := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	appt, err := f.svc.Reserve(ctx, f.doctorID, date, mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, ActorPatient, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelledBy)
	assert.Equal(t, ActorPatient, *updated.CancelledBy)
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, ActorStaff, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusConfirmed, ActorStaff, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), StatusCancelled, ActorStaff, "")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestStaffCompletesAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)
	f.publisher.waitFor(t, EventAppointmentBooked)

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, StatusCompleted, ActorStaff, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	f.publisher.waitFor(t, EventAppointmentStatusChanged)
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "checkup")
	require.NoError(t, err)

	reason := "follow-up"
	notes := "bring previous scans"
	updated, err := f.svc.UpdateDetails(ctx, appt.ID, DetailUpdate{Reason: &reason, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "follow-up", updated.Reason)
	assert.Equal(t, "bring previous scans", updated.Notes)
	assert.Equal(t, StatusConfirmed, updated.Status)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	newDate := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC) // Wednesday
	moved, err := f.svc.Reschedule(ctx, appt.ID, newDate, mustTime(t, "15:00"), ActorPatient)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", moved.DateString())
	assert.Equal(t, "15:00", moved.TimeString())
	assert.Equal(t, appt.Status, moved.Status)

	// The old slot is free again.
	avail, err := f.svc.Availability(ctx, f.doctorID, f.tomorrow())
	require.NoError(t, err)
	assert.Contains(t, avail, mustTime(t, "10:00"))
}

func TestRescheduleSameDateKeepsOwnSlotReachable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	// Moving within the same date must not see the appointment's own row as
	// a conflict.
	moved, err := f.svc.Reschedule(ctx, appt.ID, f.tomorrow(), mustTime(t, "10:30"), ActorPatient)
	require.NoError(t, err)
	assert.Equal(t, "10:30", moved.TimeString())
}

func TestRescheduleConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taken := mustTime(t, "13:00")
	_, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), taken, f.patientID, "")
	require.NoError(t, err)

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.tomorrow(), taken, ActorPatient)
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestRescheduleTerminalAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Reserve(ctx, f.doctorID, f.tomorrow(), mustTime(t, "10:00"), f.patientID, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, ActorStaff, "")
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.tomorrow(), mustTime(t, "15:00"), ActorPatient)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	slot := mustTime(t, "15:00")

	appt, err := f.svc.Reserve(ctx, f.doctorID, today, slot, f.patientID, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCompleted, ActorStaff, "")
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, f.doctorID, today, mustTime(t, "15:30"), f.patientID, "")
	require.NoError(t, err)

	sum, err := f.svc.DashboardSummary(ctx, f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.TotalPatients)
	assert.Equal(t, int64(1), sum.TodayCompleted)
	assert.Equal(t, int64(1), sum.TodayConfirmed)
	assert.Equal(t, int64(0), sum.TodayPending)
}
