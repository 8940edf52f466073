package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// TransferRepository is an in-process domain.TransactionLog.
type TransferRepository struct {
	mu               sync.RWMutex
	transfers        map[string]*domain.TransferRecord
	participantIndex map[string][]string
}

func NewTransferRepository() *TransferRepository {
	return &TransferRepository{
		transfers:        make(map[string]*domain.TransferRecord),
		participantIndex: make(map[string][]string),
	}
}

func (r *TransferRepository) Create(ctx context.Context, record *domain.TransferRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transfers[record.ID]; exists {
		return "", fmt.Errorf("duplicate transfer id %s", record.ID)
	}

	stored := *record
	r.transfers[record.ID] = &stored

	r.participantIndex[record.SourceID] = append(r.participantIndex[record.SourceID], record.ID)
	if record.DestinationID != record.SourceID {
		r.participantIndex[record.DestinationID] = append(r.participantIndex[record.DestinationID], record.ID)
	}

	return record.ID, nil
}

func (r *TransferRepository) Finalize(ctx context.Context, id string, status domain.TransferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.transfers[id]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
	}

	done, err := record.CanFinalize(status)
	if err != nil || done {
		return err
	}

	now := time.Now().UTC()
	record.Status = status
	record.FinalizedAt = &now
	return nil
}

func (r *TransferRepository) Get(ctx context.Context, id string) (*domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.transfers[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
	}
	copied := *record
	return &copied, nil
}

func (r *TransferRepository) Query(ctx context.Context, participantID string, limit int) ([]*domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.participantIndex[participantID]
	result := make([]*domain.TransferRecord, 0, len(ids))
	for _, id := range ids {
		copied := *r.transfers[id]
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *TransferRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, record := range r.transfers {
		if record.Status == domain.TransferStatusPending && record.CreatedAt.Before(olderThan) {
			copied := *record
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
