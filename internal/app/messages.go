package app

import (
	"fmt"
	"strings"

	"github.com/sigmundftw/educabot/internal/slack"
	"github.com/sigmundftw/educabot/internal/store"
)

func listMessage(proposals []store.Proposal) slack.Message {
	if len(proposals) == 0 {
		return slack.Message{
			ResponseType: slack.ResponseEphemeral,
			Text:         "Aucun vidéo n'a été proposé dans ce channel. Utilisez /propose pour en ajouter un.",
		}
	}

	lines := make([]string, 0, len(proposals))
	blocks := []slack.Block{slack.Section("*Vidéos proposés*"), slack.Divider()}
	for _, proposal := range proposals {
		line := fmt.Sprintf("• <%s|%s>", proposal.URL, proposal.Name)
		if strings.TrimSpace(proposal.PlannedIn) != "" {
			line += " _(planifié)_"
		}
		if proposal.Notes != "" {
			line += "\n" + proposal.Notes
		}
		lines = append(lines, line)
		blocks = append(blocks, slack.Section(line))
	}

	return slack.Message{
		ResponseType: slack.ResponseEphemeral,
		Text:         strings.Join(lines, "\n"),
		Blocks:       blocks,
	}
}

func proposedMessage(proposal store.Proposal) slack.Message {
	text := fmt.Sprintf("<@%s> a proposé <%s|%s>.", proposal.ProposedBy, proposal.URL, proposal.Name)
	return slack.Message{Text: text, Blocks: []slack.Block{slack.Section(text)}}
}

func plannedMessage(plan store.Plan, video *store.Proposal) slack.Message {
	text := fmt.Sprintf("Lunch&Watch planifié le *%s*.", plan.Date)
	if plan.Owner != "" {
		text += fmt.Sprintf(" Responsable : <@%s>.", plan.Owner)
	} else {
		text += " Un volontaire est recherché comme responsable."
	}
	if video != nil {
		text += fmt.Sprintf(" Vidéo : <%s|%s>.", video.URL, video.Name)
	} else {
		text += " Le vidéo sera choisi par un vote du channel."
	}
	return slack.Message{Text: text, Blocks: []slack.Block{slack.Section(text)}}
}

func failureMessage() slack.Message {
	return slack.Message{
		ResponseType: slack.ResponseEphemeral,
		Text:         "Oups, une erreur est survenue. Réessayez dans quelques instants.",
	}
}
