// Package reminders announces upcoming reservations to the operations chat.
package reminders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hospops/internal/metrics"
	"hospops/internal/models"
	"hospops/internal/visit"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often reservations are listed.
	// Default: 15 minutes.
	CheckInterval time.Duration

	// LeadTime is how far ahead a reservation is announced.
	// Default: 24 hours.
	LeadTime time.Duration

	// MaxConcurrentNotifications limits parallel sends.
	// Default: 4.
	MaxConcurrentNotifications int

	// SendRate and SendBurst pace deliveries. Default: 20/s, burst 30.
	SendRate  float64
	SendBurst int

	Retry RetryConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:              15 * time.Minute,
		LeadTime:                   24 * time.Hour,
		MaxConcurrentNotifications: 4,
		SendRate:                   20,
		SendBurst:                  30,
		Retry:                      DefaultRetryConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = d.CheckInterval
	}
	if c.LeadTime <= 0 {
		c.LeadTime = d.LeadTime
	}
	if c.MaxConcurrentNotifications <= 0 {
		c.MaxConcurrentNotifications = d.MaxConcurrentNotifications
	}
	if c.SendRate <= 0 {
		c.SendRate = d.SendRate
	}
	if c.SendBurst <= 0 {
		c.SendBurst = d.SendBurst
	}
	if c.Retry.MaxRetries == 0 && len(c.Retry.RetryDelays) == 0 {
		c.Retry = d.Retry
	}
	return c
}

// Result of one check.
type Result struct {
	Due    int
	Sent   int
	Failed int
}

// Service announces every RESERVED reservation once, when it enters the
// lead time window.
type Service struct {
	config Config
	source ReservationSource
	sender Sender
	marker Marker
	logger *zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a reminder service. A nil marker keeps marks in memory.
func NewService(config Config, source ReservationSource, sender Sender, marker Marker, logger *zerolog.Logger) *Service {
	config = config.withDefaults()
	if marker == nil {
		marker = NewMemoryMarker()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "reminders").Logger()
	return &Service{
		config: config,
		source: source,
		sender: &retryingSender{
			next:    sender,
			limiter: rate.NewLimiter(rate.Limit(config.SendRate), config.SendBurst),
			retry:   config.Retry,
			logger:  &l,
		},
		marker: marker,
		logger: &l,
		now:    time.Now,
	}
}

// Start begins the check loop; it runs until Stop or ctx ends.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Dur("lead_time", s.config.LeadTime).
		Msg("reminder service started")
}

// Stop gracefully stops the loop.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("reminder service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately on start
	_, _ = s.CheckNow(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.CheckNow(ctx)
		}
	}
}

// CheckNow lists reservations and announces the due ones.
func (s *Service) CheckNow(ctx context.Context) (Result, error) {
	reservations, err := s.source.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list reservations")
		return Result{}, err
	}

	due := s.due(reservations)
	res := Result{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}
	s.logger.Debug().Int("count", len(due)).Msg("reservations due for a reminder")

	sem := make(chan struct{}, s.config.MaxConcurrentNotifications)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, r := range due {
		// A mark outlives the reservation so a late re-list never repeats it.
		first, err := s.marker.TryMark(ctx, r.ID, s.config.LeadTime+time.Hour)
		if err != nil {
			s.logger.Error().Err(err).Int64("visit_id", r.ID).Msg("mark reminder")
			continue
		}
		if !first {
			metrics.ObserveReminder("skipped", 0)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(r models.Reservation) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := s.send(ctx, r)
			mu.Lock()
			if ok {
				res.Sent++
			} else {
				res.Failed++
			}
			mu.Unlock()
		}(r)
	}
	wg.Wait()
	return res, nil
}

// due keeps RESERVED reservations starting within the lead time, earliest
// first.
func (s *Service) due(all []models.Reservation) []models.Reservation {
	now := s.now()
	until := now.Add(s.config.LeadTime)
	var out []models.Reservation
	for _, r := range all {
		if r.Status != visit.StatusReserved || r.ReservedAt == nil {
			continue
		}
		if r.ReservedAt.Before(now) || r.ReservedAt.After(until) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(*out[j].ReservedAt) })
	return out
}

func (s *Service) send(ctx context.Context, r models.Reservation) bool {
	start := time.Now()
	if err := s.sender.SendText(ctx, FormatReminder(r)); err != nil {
		s.logger.Error().Err(err).Int64("visit_id", r.ID).Msg("send reminder")
		metrics.ObserveReminder("failed", time.Since(start))
		if uerr := s.marker.Unmark(ctx, r.ID); uerr != nil {
			s.logger.Error().Err(uerr).Int64("visit_id", r.ID).Msg("unmark reminder")
		}
		return false
	}
	metrics.ObserveReminder("sent", time.Since(start))
	s.logger.Info().Int64("visit_id", r.ID).Str("visit_number", r.VisitNumber).Msg("reminder sent")
	return true
}

// FormatReminder renders the chat text of one reservation.
func FormatReminder(r models.Reservation) string {
	var b strings.Builder
	b.WriteString("[예약 알림] ")
	if r.ReservedAt != nil {
		b.WriteString(r.ReservedAt.Format("01/02 15:04"))
		b.WriteString(" ")
	}
	name := r.PatientName
	if name == "" {
		name = fmt.Sprintf("환자 #%d", r.PatientID)
	}
	b.WriteString(name)
	if r.DepartmentName != "" {
		fmt.Fprintf(&b, " (%s)", r.DepartmentName)
	}
	if r.VisitNumber != "" {
		fmt.Fprintf(&b, " %s", r.VisitNumber)
	}
	return b.String()
}
