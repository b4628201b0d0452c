package billing

import (
	"sync"
	"time"

	"github.com/echoscribehq/echoscribe/app/models"
)

// memoryRepository implements Repository with the same conditional-write
// semantics as the GORM implementation, for handler and dispatcher tests.
type memoryRepository struct {
	mu      sync.Mutex
	events  map[string]*models.WebhookEvent
	records map[uint]*models.BillingRecord
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		events:  make(map[string]*models.WebhookEvent),
		records: make(map[uint]*models.BillingRecord),
	}
}

func (m *memoryRepository) GetProcessedEvent(providerEventID string) (*models.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[providerEventID]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (m *memoryRepository) RecordProcessedEvent(event *models.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ProviderEventID]; ok {
		return nil // unique index + DoNothing
	}
	cp := *event
	m.events[event.ProviderEventID] = &cp
	return nil
}

func (m *memoryRepository) GetBillingRecordByUser(userID uint) (*models.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memoryRepository) GetBillingRecordByCustomer(customerID string) (*models.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.CustomerID == customerID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryRepository) CreateBillingRecord(rec *models.BillingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.UserID]; ok {
		return ErrHandlerFailure // duplicate key
	}
	cp := *rec
	m.records[rec.UserID] = &cp
	return nil
}

func (m *memoryRepository) UpdateBillingRecordIfUnchanged(rec *models.BillingRecord, prevLastEventAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[rec.UserID]
	if !ok {
		return false, nil
	}
	switch {
	case prevLastEventAt == nil && stored.LastEventAt != nil:
		return false, nil
	case prevLastEventAt != nil && (stored.LastEventAt == nil || !stored.LastEventAt.Equal(*prevLastEventAt)):
		return false, nil
	}
	stored.PlanType = rec.PlanType
	stored.PlanID = rec.PlanID
	stored.CustomerID = rec.CustomerID
	stored.Status = rec.Status
	stored.LastEventAt = rec.LastEventAt
	return true, nil
}
