package snapshotv1

import "context"

// Store defines the interface for storing and loading snapshots of order books.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=snapshotv1_mock
type Store interface {
	Store(ctx context.Context, snapshot *Snapshot) error
	Load(ctx context.Context, instrumentID string) (*Snapshot, error)
}
