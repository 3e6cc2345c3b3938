package repo

import (
	"context"
	"time"

	"github.com/sigmundftw/educabot/internal/partition"
	"github.com/sigmundftw/educabot/internal/store"
)

// Channels remembers which channels of a workspace used the bot.
type Channels struct {
	table store.Table
	now   func() time.Time
}

func NewChannels(backend store.Backend) *Channels {
	return &Channels{
		table: backend.Table(store.TableChannels),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RecordActivity refreshes the channel's last-seen marker. Repeated calls
// replace the same record.
func (r *Channels) RecordActivity(ctx context.Context, workspaceID, channelID string) error {
	return store.Upsert(ctx, r.table, store.Channel{
		PartitionKey: partition.Workspace(workspaceID).String(),
		ChannelID:    channelID,
		LastSeen:     r.now(),
	})
}

// List returns the known channels of a workspace.
func (r *Channels) List(ctx context.Context, workspaceID string) ([]store.Channel, error) {
	return store.Scan(ctx, r.table, partition.Workspace(workspaceID).String(), store.DecodeChannel, store.ScanOptions[store.Channel]{})
}
