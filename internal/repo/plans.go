package repo

import (
	"context"

	"github.com/sigmundftw/educabot/internal/partition"
	"github.com/sigmundftw/educabot/internal/store"
	"github.com/sigmundftw/educabot/internal/util"
)

type NewPlan struct {
	Date      string
	Owner     string
	Video     string
	CreatedBy string
}

// Plans stores scheduled sessions next to the proposals of their channel.
type Plans struct {
	table store.Table
	newID func() string
}

func NewPlans(backend store.Backend) *Plans {
	return &Plans{
		table: backend.Table(store.TablePlans),
		newID: func() string { return util.NewID("plan") },
	}
}

func (r *Plans) Create(ctx context.Context, key partition.Key, input NewPlan) (store.Plan, error) {
	plan := store.Plan{
		PartitionKey: key.String(),
		RowKey:       r.newID(),
		Date:         input.Date,
		Owner:        input.Owner,
		Video:        input.Video,
		CreatedBy:    input.CreatedBy,
	}
	if err := store.Upsert(ctx, r.table, plan); err != nil {
		return store.Plan{}, err
	}
	return plan, nil
}

func (r *Plans) Get(ctx context.Context, key partition.Key, rowKey string) (store.Plan, bool, error) {
	return store.Get(ctx, r.table, key.String(), rowKey, store.DecodePlan)
}
