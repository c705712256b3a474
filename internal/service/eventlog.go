package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"laundry_notifier/internal/models"
	"laundry_notifier/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (LogFilter, error) {
	f.From = normalizeToUTC(f.From)
	f.To = normalizeToUTC(f.To)

	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return LogFilter{}, errInvalidTimeRange
	}

	f.Type = strings.TrimSpace(strings.ToUpper(f.Type))
	f.Appliance = strings.TrimSpace(f.Appliance)
	return f, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.CycleEvent, error) {
	f, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, f.From, f.To, f.Appliance, f.Type)
}
