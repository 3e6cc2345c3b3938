// Package slack is the thin adapter between the bot and the chat platform:
// it parses inbound slash commands and dialog submissions and calls the
// platform's web API.
package slack

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Command is an inbound slash command.
type Command struct {
	Name        string
	TeamID      string
	ChannelID   string
	UserID      string
	TriggerID   string
	Text        string
	ResponseURL string
}

// ParseCommand reads the form parameters the platform posts for a command.
func ParseCommand(form url.Values) (Command, error) {
	cmd := Command{
		Name:        form.Get("command"),
		TeamID:      strings.TrimSpace(form.Get("team_id")),
		ChannelID:   strings.TrimSpace(form.Get("channel_id")),
		UserID:      form.Get("user_id"),
		TriggerID:   form.Get("trigger_id"),
		Text:        strings.TrimSpace(form.Get("text")),
		ResponseURL: form.Get("response_url"),
	}
	for name, value := range map[string]string{
		"team_id":    cmd.TeamID,
		"channel_id": cmd.ChannelID,
		"trigger_id": cmd.TriggerID,
	} {
		if value == "" {
			return Command{}, fmt.Errorf("parse command: missing %s", name)
		}
	}
	return cmd, nil
}

const InteractionDialogSubmission = "dialog_submission"

// Ref identifies a workspace, channel or user.
type Ref struct {
	ID string `json:"id"`
}

// Interaction is an inbound dialog submission.
type Interaction struct {
	Type        string            `json:"type"`
	CallbackID  string            `json:"callback_id"`
	State       string            `json:"state"`
	Submission  map[string]string `json:"submission"`
	Team        Ref               `json:"team"`
	Channel     Ref               `json:"channel"`
	User        Ref               `json:"user"`
	ResponseURL string            `json:"response_url"`
}

// Value returns a trimmed submission field.
func (i Interaction) Value(name string) string {
	return strings.TrimSpace(i.Submission[name])
}

// ParseInteraction decodes the JSON payload form parameter.
func ParseInteraction(form url.Values) (Interaction, error) {
	raw := form.Get("payload")
	if raw == "" {
		return Interaction{}, fmt.Errorf("parse interaction: missing payload")
	}
	var interaction Interaction
	if err := json.Unmarshal([]byte(raw), &interaction); err != nil {
		return Interaction{}, fmt.Errorf("parse interaction: %w", err)
	}
	interaction.Team.ID = strings.TrimSpace(interaction.Team.ID)
	interaction.Channel.ID = strings.TrimSpace(interaction.Channel.ID)
	if interaction.Team.ID == "" {
		return Interaction{}, fmt.Errorf("parse interaction: missing team.id")
	}
	if interaction.Channel.ID == "" {
		return Interaction{}, fmt.Errorf("parse interaction: missing channel.id")
	}
	if interaction.Submission == nil {
		interaction.Submission = map[string]string{}
	}
	return interaction, nil
}

// FieldError flags one dialog field as invalid.
type FieldError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// SubmissionErrors is the body that keeps a dialog open with field errors.
type SubmissionErrors struct {
	Errors []FieldError `json:"errors"`
}
