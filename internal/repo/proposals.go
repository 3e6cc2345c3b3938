// Package repo holds the domain operations over the record store.
package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/sigmundftw/educabot/internal/partition"
	"github.com/sigmundftw/educabot/internal/store"
	"github.com/sigmundftw/educabot/internal/util"
)

// ErrEmptyPlanReference is returned by MarkPlanned without a plan row key.
var ErrEmptyPlanReference = errors.New("plan reference is required")

type NewProposal struct {
	Name       string
	URL        string
	Notes      string
	ProposedBy string
}

// Proposals stores proposals in one partition per (workspace, channel).
type Proposals struct {
	table    store.Table
	pageSize int
	newID    func() string
}

func NewProposals(backend store.Backend, pageSize int) *Proposals {
	return &Proposals{
		table:    backend.Table(store.TableProposals),
		pageSize: pageSize,
		newID:    func() string { return util.NewID("prop") },
	}
}

func (r *Proposals) Create(ctx context.Context, key partition.Key, input NewProposal) (store.Proposal, error) {
	proposal := store.Proposal{
		PartitionKey: key.String(),
		RowKey:       r.newID(),
		Name:         strings.TrimSpace(input.Name),
		URL:          strings.TrimSpace(input.URL),
		Notes:        strings.TrimSpace(input.Notes),
		ProposedBy:   input.ProposedBy,
	}
	if err := store.Upsert(ctx, r.table, proposal); err != nil {
		return store.Proposal{}, err
	}
	return proposal, nil
}

func (r *Proposals) Get(ctx context.Context, key partition.Key, rowKey string) (store.Proposal, bool, error) {
	return store.Get(ctx, r.table, key.String(), rowKey, store.DecodeProposal)
}

// ListActive returns every proposal of the partition in row-key order,
// planned or not. Views that only want unplanned ones apply Unplanned.
func (r *Proposals) ListActive(ctx context.Context, key partition.Key) ([]store.Proposal, error) {
	return r.Scan(ctx, key, store.ScanOptions[store.Proposal]{})
}

// Scan is ListActive with control over paging and progress.
func (r *Proposals) Scan(ctx context.Context, key partition.Key, opts store.ScanOptions[store.Proposal]) ([]store.Proposal, error) {
	if opts.PageSize == 0 {
		opts.PageSize = r.pageSize
	}
	return store.Scan(ctx, r.table, key.String(), store.DecodeProposal, opts)
}

// MarkPlanned records that planRef scheduled the proposal. The plan must
// already be stored. Two submissions racing on one proposal both succeed and
// the later write wins.
func (r *Proposals) MarkPlanned(ctx context.Context, proposal store.Proposal, planRef string) (store.Proposal, error) {
	if strings.TrimSpace(planRef) == "" {
		return store.Proposal{}, ErrEmptyPlanReference
	}
	proposal.PlannedIn = planRef
	if err := store.Upsert(ctx, r.table, proposal); err != nil {
		return store.Proposal{}, err
	}
	return proposal, nil
}

// Unplanned keeps the proposals no plan picked yet, preserving order.
func Unplanned(proposals []store.Proposal) []store.Proposal {
	out := make([]store.Proposal, 0, len(proposals))
	for _, proposal := range proposals {
		if strings.TrimSpace(proposal.PlannedIn) == "" {
			out = append(out, proposal)
		}
	}
	return out
}
