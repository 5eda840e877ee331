package moderation

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// Service runs classification, review requests and moderator decisions
type Service struct {
	targets    TargetStore
	reports    ReportStore
	messages   MessageStore
	notifier   Notifier
	penalizer  Penalizer
	classifier Classifier
	logger     *zap.Logger

	outcomes metric.Int64Counter
}

// NewService wires the moderation pipeline to its collaborators
func NewService(targets TargetStore, reports ReportStore, messages MessageStore, notifier Notifier, penalizer Penalizer, classifier Classifier) *Service {
	return &Service{
		targets:    targets,
		reports:    reports,
		messages:   messages,
		notifier:   notifier,
		penalizer:  penalizer,
		classifier: classifier,
		logger:     logging.WithComponent("moderation"),
		outcomes:   telemetry.Counter("agora_moderation_transitions_total", "Moderation status transitions by trigger"),
	}
}
