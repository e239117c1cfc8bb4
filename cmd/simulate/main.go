// Command simulate drives concurrent booking load against a running
// api-server and reports outcome counts and latencies. At the end it checks
// the database for slot invariant violations: under any level of contention
// there must be no two active appointments on the same doctor, date, time.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digihealth/clinic-scheduler/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	DaysAhead    int
	PostgresDSN  string
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	dp.appointments = append(dp.appointments, id)
	dp.mu.Unlock()
}

func (dp *DataPool) RandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Rejected int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusUnprocessableEntity || status == http.StatusServiceUnavailable:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[min(len(sorted)*95/100, len(sorted)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config SimConfig
	pool   *DataPool
	client *http.Client

	availability OperationMetrics
	booking      OperationMetrics
	cancel       OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	log.Printf("config: duration=%s workers=%d booking=%.2f cancel=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d doctors, %d patients", len(pool.Doctors), len(pool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.Run()
	sim.PrintReport()

	violations, err := countSlotViolations(context.Background(), pgPool)
	if err != nil {
		log.Fatalf("verify slot invariant: %v", err)
	}
	if violations > 0 {
		log.Fatalf("INVARIANT BROKEN: %d doctor/date/time tuples with multiple active appointments", violations)
	}
	log.Println("slot invariant holds: no double bookings")
}

func (s *Simulator) Run() {
	deadline := time.Now().Add(s.config.Duration)
	var wg sync.WaitGroup

	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				roll := rand.Float64()
				switch {
				case roll < s.config.BookingRatio:
					s.doBooking()
				case roll < s.config.BookingRatio+s.config.CancelRatio:
					s.doCancel()
				default:
					s.doAvailability()
				}
			}
		}()
	}

	wg.Wait()
}

func (s *Simulator) randomDate() string {
	day := time.Now().AddDate(0, 0, 1+rand.Intn(s.config.DaysAhead))
	return day.Format("2006-01-02")
}

func (s *Simulator) doAvailability() {
	doctorID := s.pool.Doctors[rand.Intn(len(s.pool.Doctors))]
	url := fmt.Sprintf("%s/doctors/%s/availability?date=%s", s.config.APIBaseURL, doctorID, s.randomDate())

	start := time.Now()
	resp, err := s.client.Get(url)
	if err != nil {
		s.availability.Record(time.Since(start), 0)
		return
	}
	drain(resp)
	s.availability.Record(time.Since(start), resp.StatusCode)
}

func (s *Simulator) doBooking() {
	doctorID := s.pool.Doctors[rand.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rand.Intn(len(s.pool.Patients))]
	date := s.randomDate()

	// Fetch the candidate list, then race for one of its slots. Picking from
	// a possibly stale list is the point: the server must reject the losers.
	url := fmt.Sprintf("%s/doctors/%s/availability?date=%s", s.config.APIBaseURL, doctorID, date)
	resp, err := s.client.Get(url)
	if err != nil {
		return
	}
	var avail struct {
		Slots []string `json:"slots"`
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &avail) != nil || len(avail.Slots) == 0 {
		return
	}

	// Bias toward early slots to force contention.
	slot := avail.Slots[rand.Intn(min(3, len(avail.Slots)))]

	payload, _ := json.Marshal(map[string]string{
		"doctor_id":  doctorID.String(),
		"patient_id": patientID.String(),
		"date":       date,
		"time":       slot,
		"reason":     "load test visit",
	})

	start := time.Now()
	resp, err = s.client.Post(s.config.APIBaseURL+"/appointments", "application/json", bytes.NewReader(payload))
	if err != nil {
		s.booking.Record(time.Since(start), 0)
		return
	}
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	s.booking.Record(time.Since(start), resp.StatusCode)

	if resp.StatusCode == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &created) == nil {
			s.pool.AddAppointment(created.ID)
		}
	}
}

func (s *Simulator) doCancel() {
	id, ok := s.pool.RandomAppointment()
	if !ok {
		s.doAvailability()
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"status": "cancelled",
		"actor":  "staff",
		"reason": "load test cancellation",
	})

	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/appointments/%s/status", s.config.APIBaseURL, id),
		bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.cancel.Record(time.Since(start), 0)
		return
	}
	drain(resp)
	s.cancel.Record(time.Since(start), resp.StatusCode)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n=== simulation report ===")
	printOp("availability", &s.availability)
	printOp("booking", &s.booking)
	printOp("cancel", &s.cancel)
}

func printOp(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	fmt.Printf("%-14s total=%d success=%d conflict=%d rejected=%d error=%d avg=%s p50=%s p95=%s\n",
		name,
		atomic.LoadInt64(&om.Total),
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Rejected),
		atomic.LoadInt64(&om.Error),
		avg, p50, p95)
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM doctors LIMIT 200`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Doctors = append(dp.Doctors, id)
	}

	prows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 2000`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var id uuid.UUID
		if err := prows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}

	if len(dp.Doctors) == 0 || len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no doctors or patients seeded, run cmd/seed first")
	}
	return dp, nil
}

func countSlotViolations(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	row := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT doctor_id, appointment_date, appointment_time
			FROM appointments
			WHERE status <> 'cancelled'
			GROUP BY doctor_id, appointment_date, appointment_time
			HAVING COUNT(*) > 1
		) violations
	`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func loadSimConfig() SimConfig {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 16),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		PostgresDSN:  dsn,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
