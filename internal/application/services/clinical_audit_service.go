package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
)

// ClinicalAuditService writes an audit log entry for every patient change event
type ClinicalAuditService struct {
	eventBus providers.EventBus
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewClinicalAuditService creates a new audit service writing to logger
func NewClinicalAuditService(eventBus providers.EventBus, logger zerolog.Logger) *ClinicalAuditService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ClinicalAuditService{
		eventBus: eventBus,
		logger:   logger.With().Str("component", "clinical_audit").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for patient events
func (s *ClinicalAuditService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelPatientUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to patient updates: %w", err)
	}

	go s.processEvents(eventChan)
	s.logger.Info().Msg("Clinical audit service started")
	return nil
}

// Stop stops the audit service and waits for the event loop to exit
func (s *ClinicalAuditService) Stop() {
	s.cancel()
	<-s.done
	s.logger.Info().Msg("Clinical audit service stopped")
}

func (s *ClinicalAuditService) processEvents(eventChan <-chan *entities.PatientEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *ClinicalAuditService) handleEvent(event *entities.PatientEvent) {
	entry := s.logger.Info().
		Str("audit_event_id", event.ID).
		Str("audit_event_type", string(event.Type)).
		Int64("patient_id", event.PatientID).
		Str("source", event.Source).
		Time("occurred_at", event.Timestamp)
	if event.HospitalID != nil {
		entry = entry.Int64("hospital_id", *event.HospitalID)
	}
	if event.ActorUserID != nil {
		entry = entry.Int64("actor_user_id", *event.ActorUserID)
	}
	if len(event.Details) > 0 {
		entry = entry.Interface("details", event.Details)
	}
	entry.Msg("Patient record changed")
}
