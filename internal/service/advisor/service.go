package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
)

// Fixed replies returned instead of errors.
const (
	SymptomsUnavailable = "AI Service Unavailable: Please configure API Key."
	SymptomsEmpty       = "No analysis could be generated."
	SymptomsFailed      = "Error generating diagnosis. Please check system logs."

	StockUnavailable = "AI Service Unavailable."

	ScheduleUnavailable = "AI Service Unavailable."
	ScheduleEmpty       = "Scheduling optimization failed."
	ScheduleFailed      = "Error in scheduling AI."
)

const (
	symptomsPrompt = `Act as a senior medical diagnostic assistant.
Patient Data: %s
Current Symptoms: %s

Provide a concise potential diagnosis, recommended tests, and immediate advice.
Format the response in clear HTML sections (using tags like <strong>, <ul>, <li>) but return it as a string.
Keep it professional but concise.`

	stockPrompt = `Analyze this pharmacy inventory list and predict which items are at risk of running out based on typical hospital usage patterns.
Inventory: %s

Return a JSON array of objects with properties: "medicineName", "riskLevel" (High/Medium), and "reason".
Only return valid JSON.`

	schedulePrompt = `Optimize the daily schedule.
Doctors Available: %s
Pending Appointments: %s

Assign patients to doctors to minimize wait time.
Return a summary text of the optimized schedule.`
)

// Service wraps the generator. It never returns an error: a missing key,
// an empty answer or a failure each map to a fixed reply.
type Service struct {
	gen     Generator
	cb      *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewService accepts a nil generator, meaning no API key is configured.
func NewService(gen Generator, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		gen: gen,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "advisor",
			MaxFailures: 3,
			MaxRequests: 1,
			Timeout:     time.Minute,
			OnStateChange: func(name, from, to string) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			},
		}),
		timeout: timeout,
		logger:  log,
		metrics: m,
	}
}

func (s *Service) Available() bool {
	return s.gen != nil
}

func (s *Service) record(op, outcome string) {
	if s.metrics != nil {
		s.metrics.AdvisorCalls.WithLabelValues(op, outcome).Inc()
	}
}

// generate returns the trimmed answer, "" when the model said nothing.
func (s *Service) generate(ctx context.Context, op, prompt string, json bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var text string
	err := s.cb.Execute(func() error {
		out, err := s.gen.Generate(ctx, prompt, json)
		text = out
		return err
	})
	if err != nil {
		s.record(op, "error")
		s.logger.Error(err, "advisor call failed", "operation", op)
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.record(op, "empty")
	} else {
		s.record(op, "success")
	}
	return text, nil
}

func (s *Service) AnalyzeSymptoms(ctx context.Context, symptoms, patientData string) string {
	const op = "symptoms"
	if !s.Available() {
		s.record(op, "unavailable")
		return SymptomsUnavailable
	}

	text, err := s.generate(ctx, op, fmt.Sprintf(symptomsPrompt, patientData, symptoms), false)
	switch {
	case err != nil:
		return SymptomsFailed
	case text == "":
		return SymptomsEmpty
	default:
		return text
	}
}

// InventoryLine renders one medicine the way the forecast prompt expects.
func InventoryLine(m *model.Medicine) string {
	return fmt.Sprintf("%s (Stock: %d)", m.Name, m.Stock)
}

func (s *Service) PredictStockShortage(ctx context.Context, inventory []*model.Medicine) model.StockForecast {
	const op = "stock"
	empty := model.StockForecast{Predictions: []model.StockPrediction{}}
	if !s.Available() {
		s.record(op, "unavailable")
		empty.Notice = StockUnavailable
		return empty
	}

	lines := make([]string, 0, len(inventory))
	for _, m := range inventory {
		lines = append(lines, InventoryLine(m))
	}

	text, err := s.generate(ctx, op, fmt.Sprintf(stockPrompt, strings.Join(lines, ", ")), true)
	if err != nil || text == "" {
		return empty
	}

	var predictions []model.StockPrediction
	if err := json.Unmarshal([]byte(stripFence(text)), &predictions); err != nil {
		s.logger.Error(err, "advisor returned invalid stock forecast")
		s.record(op, "invalid")
		return empty
	}
	if predictions == nil {
		predictions = []model.StockPrediction{}
	}
	return model.StockForecast{Predictions: predictions}
}

func (s *Service) GenerateSmartSchedule(ctx context.Context, doctors []model.Staff, pending []model.AppointmentRequest) string {
	const op = "schedule"
	if !s.Available() {
		s.record(op, "unavailable")
		return ScheduleUnavailable
	}

	docs := make([]string, 0, len(doctors))
	for _, d := range doctors {
		docs = append(docs, fmt.Sprintf("%s (%s, %s)", d.Name, d.Role, d.Status))
	}
	appts := make([]string, 0, len(pending))
	for _, r := range pending {
		name := r.PatientName
		if name == "" {
			name = model.UnknownPatient
		}
		appts = append(appts, fmt.Sprintf("%s - %s: %s", name, r.Service.Label(), r.Symptoms))
	}

	text, err := s.generate(ctx, op, fmt.Sprintf(schedulePrompt, strings.Join(docs, ", "), strings.Join(appts, "; ")), false)
	switch {
	case err != nil:
		return ScheduleFailed
	case text == "":
		return ScheduleEmpty
	default:
		return text
	}
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
