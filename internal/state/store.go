package state

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
)

// Persisted keys. Existing dashboards read these names directly.
const (
	KeyLegacyRequest    = "patient_request"
	KeyRequestPrefix    = "patient_request:"
	KeyEmergencyActive  = "emergency_active"
	KeyEmergencyPatient = "emergency_patient"
	// KeyEmergencyRequest holds the id of the request that raised the flag.
	KeyEmergencyRequest = "emergency_request"

	emergencyOn = "true"
)

func RequestKey(id int64) string {
	return KeyRequestPrefix + strconv.FormatInt(id, 10)
}

// Store gives typed access to the shared key-value surface. Reads never fail:
// an unreachable backend reads as empty and undecodable records are removed.
type Store struct {
	kv      repository.KVStore
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewStore(kv repository.KVStore, log *logger.Logger, m *metrics.Metrics) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{kv: kv, logger: log, metrics: m}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// decode unmarshals raw into a request. A corrupt record is logged and removed.
func (s *Store) decode(ctx context.Context, key string, raw []byte) (model.AppointmentRequest, bool) {
	var req model.AppointmentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Error(err, "corrupt request record, clearing", "key", key)
		if s.metrics != nil {
			s.metrics.CorruptRecords.Inc()
		}
		if err := s.kv.Remove(ctx, key); err != nil {
			s.logger.Error(err, "failed to clear corrupt record", "key", key)
		}
		return model.AppointmentRequest{}, false
	}
	return req, true
}

// Requests returns every stored request ordered by id. A legacy single-slot
// record not present in the keyed collection is included.
func (s *Store) Requests(ctx context.Context) []model.AppointmentRequest {
	items, err := s.kv.List(ctx, KeyRequestPrefix)
	if err != nil {
		s.logger.Error(err, "failed to list requests")
		return []model.AppointmentRequest{}
	}

	byID := make(map[int64]model.AppointmentRequest, len(items)+1)
	for key, raw := range items {
		if req, ok := s.decode(ctx, key, raw); ok {
			byID[req.ID] = req
		}
	}
	if legacy, ok := s.LegacyRequest(ctx); ok {
		if _, exists := byID[legacy.ID]; !exists {
			byID[legacy.ID] = legacy
		}
	}

	out := make([]model.AppointmentRequest, 0, len(byID))
	for _, req := range byID {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Request returns the request with id from the keyed collection or the legacy slot.
func (s *Store) Request(ctx context.Context, id int64) (model.AppointmentRequest, bool) {
	key := RequestKey(id)
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Error(err, "failed to read request", "key", key)
		return model.AppointmentRequest{}, false
	}
	if ok {
		return s.decode(ctx, key, raw)
	}
	if legacy, ok := s.LegacyRequest(ctx); ok && legacy.ID == id {
		return legacy, true
	}
	return model.AppointmentRequest{}, false
}

// LegacyRequest reads the single-slot patient_request key.
func (s *Store) LegacyRequest(ctx context.Context) (model.AppointmentRequest, bool) {
	raw, ok, err := s.kv.Get(ctx, KeyLegacyRequest)
	if err != nil {
		s.logger.Error(err, "failed to read legacy request")
		return model.AppointmentRequest{}, false
	}
	if !ok {
		return model.AppointmentRequest{}, false
	}
	return s.decode(ctx, KeyLegacyRequest, raw)
}

// PutRequest writes req to the keyed collection and, when mirror is set, to
// the legacy slot.
func (s *Store) PutRequest(ctx context.Context, req model.AppointmentRequest, mirror bool) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, RequestKey(req.ID), raw); err != nil {
		return err
	}
	if mirror {
		return s.kv.Set(ctx, KeyLegacyRequest, raw)
	}
	return nil
}

// DeleteRequest removes the request and clears the legacy slot if it holds the same id.
func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	keys := []string{RequestKey(id)}
	if legacy, ok := s.LegacyRequest(ctx); ok && legacy.ID == id {
		keys = append(keys, KeyLegacyRequest)
	}
	return s.kv.Remove(ctx, keys...)
}

// DeleteAllRequests removes the keyed collection and the legacy slot.
func (s *Store) DeleteAllRequests(ctx context.Context) error {
	items, err := s.kv.List(ctx, KeyRequestPrefix)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(items)+1)
	for key := range items {
		keys = append(keys, key)
	}
	keys = append(keys, KeyLegacyRequest)
	return s.kv.Remove(ctx, keys...)
}

func (s *Store) Emergency(ctx context.Context) model.EmergencyFlag {
	raw, ok, err := s.kv.Get(ctx, KeyEmergencyActive)
	if err != nil {
		s.logger.Error(err, "failed to read emergency flag")
		return model.EmergencyFlag{}
	}
	if !ok || strings.TrimSpace(string(raw)) != emergencyOn {
		return model.EmergencyFlag{}
	}

	flag := model.EmergencyFlag{Active: true}
	name, ok, err := s.kv.Get(ctx, KeyEmergencyPatient)
	if err != nil {
		s.logger.Error(err, "failed to read emergency patient")
	}
	if ok {
		flag.PatientName = string(name)
	}
	return flag
}

func (s *Store) SetEmergency(ctx context.Context, patientName string, requestID int64) error {
	if err := s.kv.Set(ctx, KeyEmergencyPatient, []byte(patientName)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyEmergencyRequest, []byte(strconv.FormatInt(requestID, 10))); err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyEmergencyActive, []byte(emergencyOn))
}

// EmergencyRequestID reports which request raised the flag. ok is false when
// the flag was written by a client that only knows the legacy keys.
func (s *Store) EmergencyRequestID(ctx context.Context) (int64, bool) {
	raw, ok, err := s.kv.Get(ctx, KeyEmergencyRequest)
	if err != nil {
		s.logger.Error(err, "failed to read emergency request id")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *Store) ClearEmergency(ctx context.Context) error {
	return s.kv.Remove(ctx, KeyEmergencyActive, KeyEmergencyPatient, KeyEmergencyRequest)
}

// Reset removes every request and the emergency flag.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.DeleteAllRequests(ctx); err != nil {
		return err
	}
	return s.ClearEmergency(ctx)
}

func (s *Store) Snapshot(ctx context.Context) model.Snapshot {
	return model.Snapshot{
		Requests:  s.Requests(ctx),
		Emergency: s.Emergency(ctx),
	}
}
