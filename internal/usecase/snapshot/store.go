package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	snapshotv1 "github.com/christopherrons/herron-trading-engine/internal/domain/snapshot/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	logger "github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/christopherrons/herron-trading-engine/pkg/redis"
)

// Store persists order book snapshots in Redis, one key per instrument.
type Store struct {
	logger      *logger.Logger
	redisclient redis.Client
}

// NewSnapshotStore creates a new snapshot store backed by the given Redis client.
func NewSnapshotStore(redisclient redis.Client, logger *logger.Logger) *Store {
	return &Store{
		redisclient: redisclient,
		logger:      logger,
	}
}

func snapshotKey(instrumentID string) string {
	return fmt.Sprintf("book:%s", instrumentID)
}

// Store serializes the snapshot and stores it in Redis.
func (s *Store) Store(ctx context.Context, snapshot *snapshotv1.Snapshot) error {
	buf, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: snapshot.InstrumentID,
		})
		return errors.NewTracer("snapshot_marshal_error").Wrap(err)
	}

	if err := s.redisclient.Set(ctx, snapshotKey(snapshot.InstrumentID), buf, 0); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: snapshot.InstrumentID,
		})
		return errors.NewTracer("snapshot_store_error").Wrap(err)
	}

	s.logger.InfoContext(ctx, "Snapshot stored", logger.Field{
		Key:   "instrument",
		Value: snapshot.InstrumentID,
	}, logger.Field{
		Key:   "sequence",
		Value: snapshot.Sequence,
	})

	return nil
}

// Prune deletes snapshots for instruments that are no longer registered.
// Stale keys linger after an instrument is removed from the configuration.
func (s *Store) Prune(ctx context.Context, instrumentIDs []string) error {
	keep := make(map[string]struct{}, len(instrumentIDs))
	for _, id := range instrumentIDs {
		keep[snapshotKey(id)] = struct{}{}
	}

	keys, err := s.redisclient.Keys(ctx, snapshotKey("*"))
	if err != nil {
		return errors.NewTracer("snapshot_prune_error").Wrap(err)
	}

	var stale []string
	for _, key := range keys {
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
	}

	if len(stale) == 0 {
		return nil
	}

	deleted, err := s.redisclient.Del(ctx, stale...)
	if err != nil {
		return errors.NewTracer("snapshot_prune_error").Wrap(err)
	}

	s.logger.InfoContext(ctx, "Pruned stale snapshots", logger.Field{
		Key:   "deleted",
		Value: deleted,
	})

	return nil
}

// Load deserializes the snapshot for an instrument from Redis. A missing
// snapshot returns nil without error.
func (s *Store) Load(ctx context.Context, instrumentID string) (*snapshotv1.Snapshot, error) {
	data, err := s.redisclient.Get(ctx, snapshotKey(instrumentID))
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: instrumentID,
		}, logger.Field{
			Key:   "action",
			Value: "load snapshot",
		})
		return nil, errors.NewTracer("snapshot_load_error").Wrap(err)
	}

	if data == "" {
		s.logger.WarnContext(ctx, fmt.Sprintf("No snapshot found for instrument %s", instrumentID), logger.Field{
			Key:   "instrument",
			Value: instrumentID,
		})
		return nil, nil
	}

	var snapshot snapshotv1.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "instrument",
			Value: instrumentID,
		}, logger.Field{
			Key:   "action",
			Value: "unmarshal snapshot",
		})
		return nil, errors.NewTracer("snapshot_unmarshal_error").Wrap(err)
	}

	return &snapshot, nil
}
