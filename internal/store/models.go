package store

import (
	"time"
)

const (
	TableProposals = "proposals"
	TablePlans     = "plans"
	TableChannels  = "channels"
)

// Proposal is a video someone suggested for a future session.
// An empty PlannedIn means no plan picked it yet.
type Proposal struct {
	PartitionKey string
	RowKey       string
	Name         string
	URL          string
	Notes        string
	PlannedIn    string
	ProposedBy   string
	Timestamp    time.Time
}

func (p Proposal) Row() Row {
	return Row{
		PartitionKey: p.PartitionKey,
		RowKey:       p.RowKey,
		Attributes: map[string]string{
			"name":        p.Name,
			"url":         p.URL,
			"notes":       p.Notes,
			"planned_in":  p.PlannedIn,
			"proposed_by": p.ProposedBy,
		},
	}
}

func DecodeProposal(row Row) (Proposal, error) {
	if err := require("proposal", row, "name", "url"); err != nil {
		return Proposal{}, err
	}
	return Proposal{
		PartitionKey: row.PartitionKey,
		RowKey:       row.RowKey,
		Name:         row.Attr("name"),
		URL:          row.Attr("url"),
		Notes:        row.Attr("notes"),
		PlannedIn:    row.Attr("planned_in"),
		ProposedBy:   row.Attr("proposed_by"),
		Timestamp:    row.Timestamp,
	}, nil
}

// Plan is a scheduled session. Video is the row key of the chosen proposal,
// empty when the channel still has to vote.
type Plan struct {
	PartitionKey string
	RowKey       string
	Date         string
	Owner        string
	Video        string
	CreatedBy    string
	Timestamp    time.Time
}

func (p Plan) Row() Row {
	return Row{
		PartitionKey: p.PartitionKey,
		RowKey:       p.RowKey,
		Attributes: map[string]string{
			"date":       p.Date,
			"owner":      p.Owner,
			"video":      p.Video,
			"created_by": p.CreatedBy,
		},
	}
}

func DecodePlan(row Row) (Plan, error) {
	if err := require("plan", row, "date"); err != nil {
		return Plan{}, err
	}
	return Plan{
		PartitionKey: row.PartitionKey,
		RowKey:       row.RowKey,
		Date:         row.Attr("date"),
		Owner:        row.Attr("owner"),
		Video:        row.Attr("video"),
		CreatedBy:    row.Attr("created_by"),
		Timestamp:    row.Timestamp,
	}, nil
}

// Channel records that the bot saw activity in a channel.
type Channel struct {
	PartitionKey string
	ChannelID    string
	LastSeen     time.Time
}

func (c Channel) Row() Row {
	return Row{
		PartitionKey: c.PartitionKey,
		RowKey:       c.ChannelID,
		Attributes: map[string]string{
			"last_seen": c.LastSeen.UTC().Format(time.RFC3339Nano),
		},
	}
}

func DecodeChannel(row Row) (Channel, error) {
	if err := require("channel", row, "last_seen"); err != nil {
		return Channel{}, err
	}
	lastSeen, err := time.Parse(time.RFC3339Nano, row.Attr("last_seen"))
	if err != nil {
		return Channel{}, &SchemaError{Entity: "channel", Attribute: "last_seen", RowKey: row.RowKey}
	}
	return Channel{
		PartitionKey: row.PartitionKey,
		ChannelID:    row.RowKey,
		LastSeen:     lastSeen,
	}, nil
}

func require(entity string, row Row, attributes ...string) error {
	for _, name := range attributes {
		if row.Attr(name) == "" {
			return &SchemaError{Entity: entity, Attribute: name, RowKey: row.RowKey}
		}
	}
	return nil
}
