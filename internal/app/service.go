package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sigmundftw/educabot/internal/config"
	"github.com/sigmundftw/educabot/internal/dialog"
	"github.com/sigmundftw/educabot/internal/logger"
	"github.com/sigmundftw/educabot/internal/partition"
	"github.com/sigmundftw/educabot/internal/repo"
	"github.com/sigmundftw/educabot/internal/slack"
	"github.com/sigmundftw/educabot/internal/store"
)

// ChatClient is the outbound side of the chat platform.
type ChatClient interface {
	OpenDialog(ctx context.Context, triggerID string, d dialog.Dialog) error
	PostMessage(ctx context.Context, channelID string, msg slack.Message) error
}

// Service runs the propose, list and plan workflows. It keeps no state of
// its own between calls.
type Service struct {
	backend   store.Backend
	proposals *repo.Proposals
	plans     *repo.Plans
	channels  *repo.Channels
	chat      ChatClient
	log       *logger.Logger
}

func New(cfg config.Config, backend store.Backend, chat ChatClient, log *logger.Logger) *Service {
	return &Service{
		backend:   backend,
		proposals: repo.NewProposals(backend, cfg.StorePageSize),
		plans:     repo.NewPlans(backend),
		channels:  repo.NewChannels(backend),
		chat:      chat,
		log:       log,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Propose opens the propose dialog, prefilled with the command text.
func (s *Service) Propose(ctx context.Context, cmd slack.Command) error {
	if err := s.channels.RecordActivity(ctx, cmd.TeamID, cmd.ChannelID); err != nil {
		return err
	}
	if err := s.chat.OpenDialog(ctx, cmd.TriggerID, dialog.BuildProposeDialog(cmd.Text)); err != nil {
		return fmt.Errorf("open propose dialog: %w", err)
	}
	return nil
}

// List renders every proposal of the channel.
func (s *Service) List(ctx context.Context, cmd slack.Command) (slack.Message, error) {
	if err := s.channels.RecordActivity(ctx, cmd.TeamID, cmd.ChannelID); err != nil {
		return slack.Message{}, err
	}
	proposals, err := s.proposals.ListActive(ctx, partition.Derive(cmd.TeamID, cmd.ChannelID))
	if err != nil {
		return slack.Message{}, err
	}
	return listMessage(proposals), nil
}

// Plan opens the plan dialog. A command text that reads as a date becomes
// the default date.
func (s *Service) Plan(ctx context.Context, cmd slack.Command) error {
	if err := s.channels.RecordActivity(ctx, cmd.TeamID, cmd.ChannelID); err != nil {
		return err
	}
	key := partition.Derive(cmd.TeamID, cmd.ChannelID)
	proposals, err := s.proposals.ListActive(ctx, key)
	if err != nil {
		return err
	}

	defaultDate := ""
	if isDate(cmd.Text) {
		defaultDate = cmd.Text
	}
	if err := s.chat.OpenDialog(ctx, cmd.TriggerID, dialog.BuildPlanDialog(key, proposals, defaultDate)); err != nil {
		return fmt.Errorf("open plan dialog: %w", err)
	}
	return nil
}

// Submit handles a dialog submission. Field errors keep the dialog open and
// are not failures.
func (s *Service) Submit(ctx context.Context, interaction slack.Interaction) ([]slack.FieldError, error) {
	if interaction.Type != slack.InteractionDialogSubmission {
		return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_INTERACTION", "Unsupported interaction type", interaction.Type)
	}
	switch interaction.CallbackID {
	case dialog.CallbackPropose:
		return s.submitProposal(ctx, interaction)
	case dialog.CallbackPlan:
		return s.submitPlan(ctx, interaction)
	default:
		return nil, domainError(http.StatusBadRequest, "UNKNOWN_CALLBACK", "Unknown dialog", interaction.CallbackID)
	}
}

func (s *Service) submitProposal(ctx context.Context, interaction slack.Interaction) ([]slack.FieldError, error) {
	name := interaction.Value(dialog.FieldName)
	url := interaction.Value(dialog.FieldURL)

	var fieldErrors []slack.FieldError
	if name == "" {
		fieldErrors = append(fieldErrors, slack.FieldError{Name: dialog.FieldName, Error: "Le nom est requis."})
	} else if utf8.RuneCountInString(name) > dialog.NameMaxLength {
		fieldErrors = append(fieldErrors, slack.FieldError{Name: dialog.FieldName, Error: fmt.Sprintf("Maximum %d caractères.", dialog.NameMaxLength)})
	}
	if url == "" {
		fieldErrors = append(fieldErrors, slack.FieldError{Name: dialog.FieldURL, Error: "L'URL est requise."})
	}
	if len(fieldErrors) > 0 {
		return fieldErrors, nil
	}

	team, channel := interaction.Team.ID, interaction.Channel.ID
	if err := s.channels.RecordActivity(ctx, team, channel); err != nil {
		return nil, err
	}
	proposal, err := s.proposals.Create(ctx, partition.Derive(team, channel), repo.NewProposal{
		Name:       name,
		URL:        url,
		Notes:      interaction.Value(dialog.FieldNotes),
		ProposedBy: interaction.User.ID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("proposal created", "partition", proposal.PartitionKey, "proposal", proposal.RowKey)

	if err := s.chat.PostMessage(ctx, channel, proposedMessage(proposal)); err != nil {
		return nil, fmt.Errorf("post proposal message: %w", err)
	}
	return nil, nil
}

func (s *Service) submitPlan(ctx context.Context, interaction slack.Interaction) ([]slack.FieldError, error) {
	key := partition.Key(interaction.State)
	team, channel, err := partition.Parse(key)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_STATE", "Dialog state is not a channel partition", nil)
	}

	date := interaction.Value(dialog.FieldDate)
	if !isDate(date) {
		return []slack.FieldError{{Name: dialog.FieldDate, Error: "La date doit être au format AAAA-MM-JJ."}}, nil
	}

	var chosen *store.Proposal
	if videoKey := interaction.Value(dialog.FieldVideo); videoKey != "" {
		proposal, found, err := s.proposals.Get(ctx, key, videoKey)
		if err != nil {
			return nil, err
		}
		if !found {
			return []slack.FieldError{{Name: dialog.FieldVideo, Error: "Ce vidéo n'existe plus."}}, nil
		}
		chosen = &proposal
	}

	if err := s.channels.RecordActivity(ctx, team, channel); err != nil {
		return nil, err
	}

	input := repo.NewPlan{
		Date:      date,
		Owner:     interaction.Value(dialog.FieldOwner),
		CreatedBy: interaction.User.ID,
	}
	if chosen != nil {
		input.Video = chosen.RowKey
	}
	// the plan must exist before a proposal may reference it
	plan, err := s.plans.Create(ctx, key, input)
	if err != nil {
		return nil, err
	}
	if chosen != nil {
		if _, err := s.proposals.MarkPlanned(ctx, *chosen, plan.RowKey); err != nil {
			return nil, err
		}
	}
	s.log.Info("plan created", "partition", plan.PartitionKey, "plan", plan.RowKey, "video", plan.Video)

	if err := s.chat.PostMessage(ctx, channel, plannedMessage(plan, chosen)); err != nil {
		return nil, fmt.Errorf("post plan message: %w", err)
	}
	return nil, nil
}

func isDate(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	_, err := time.Parse(dialog.DateLayout, value)
	return err == nil
}
