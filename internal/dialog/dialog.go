// Package dialog builds the dialogs the bot opens in the chat platform.
//
// Builders are pure: they take already fetched records and return a fresh
// Dialog each call. The JSON form matches the platform's dialog.open payload.
package dialog

import (
	"strings"
	"unicode/utf8"

	"github.com/sigmundftw/educabot/internal/partition"
	"github.com/sigmundftw/educabot/internal/repo"
	"github.com/sigmundftw/educabot/internal/store"
)

const (
	CallbackPropose = "propose"
	CallbackPlan    = "plan"

	FieldName  = "name"
	FieldURL   = "url"
	FieldNotes = "notes"
	FieldDate  = "date"
	FieldOwner = "owner"
	FieldVideo = "video"

	NameMaxLength = 40
	DateLayout    = "2006-01-02"
)

type ElementType string

const (
	ElementText     ElementType = "text"
	ElementTextarea ElementType = "textarea"
	ElementSelect   ElementType = "select"
)

type Dialog struct {
	CallbackID  string    `json:"callback_id"`
	Title       string    `json:"title"`
	SubmitLabel string    `json:"submit_label"`
	State       string    `json:"state,omitempty"`
	Elements    []Element `json:"elements"`
}

type Element struct {
	Type        ElementType `json:"type"`
	Name        string      `json:"name"`
	Label       string      `json:"label"`
	Optional    bool        `json:"optional,omitempty"`
	MaxLength   int         `json:"max_length,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Hint        string      `json:"hint,omitempty"`
	Value       string      `json:"value,omitempty"`
	Subtype     string      `json:"subtype,omitempty"`
	DataSource  string      `json:"data_source,omitempty"`
	Options     []Option    `json:"options,omitempty"`
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Element returns the named element.
func (d Dialog) Element(name string) (Element, bool) {
	for _, element := range d.Elements {
		if element.Name == name {
			return element, true
		}
	}
	return Element{}, false
}

// BuildProposeDialog asks for a video to propose, prefilled with defaultName
// cut to NameMaxLength runes.
func BuildProposeDialog(defaultName string) Dialog {
	return Dialog{
		CallbackID:  CallbackPropose,
		Title:       "Proposer un vidéo",
		SubmitLabel: "Proposer",
		Elements: []Element{
			{
				Type:        ElementText,
				Name:        FieldName,
				Label:       "Nom du vidéo",
				MaxLength:   NameMaxLength,
				Placeholder: "How to use a computer",
				Value:       truncateRunes(defaultName, NameMaxLength),
			},
			{
				Type:        ElementText,
				Name:        FieldURL,
				Label:       "URL vers la vidéo",
				Subtype:     "url",
				Placeholder: "http://example.com/my-awesome-video",
				Hint:        `Si le vidéo est sur le réseau, inscrivez le chemin vers le fichier partagé, débutant par \\`,
			},
			{
				Type:     ElementTextarea,
				Name:     FieldNotes,
				Label:    "Notes",
				Optional: true,
			},
		},
	}
}

// BuildPlanDialog asks for a session date, an owner and, when at least one
// proposal is still unplanned, a video. With nothing left to pick the video
// element is left out entirely. The partition travels as dialog state so the
// submission lands in the same channel.
func BuildPlanDialog(state partition.Key, activeProposals []store.Proposal, defaultDate string) Dialog {
	d := Dialog{
		CallbackID:  CallbackPlan,
		Title:       "Planifier un Lunch&Watch",
		SubmitLabel: "Planifier",
		State:       state.String(),
		Elements: []Element{
			{
				Type:  ElementText,
				Name:  FieldDate,
				Label: "Date",
				Hint:  "Au format AAAA-MM-JJ",
				Value: defaultDate,
			},
			{
				Type:       ElementSelect,
				Name:       FieldOwner,
				Label:      "Responsable",
				Optional:   true,
				DataSource: "users",
				Hint:       "Si non choisi, le bot va demander un volontaire.",
			},
		},
	}

	eligible := repo.Unplanned(activeProposals)
	if len(eligible) == 0 {
		return d
	}

	options := make([]Option, 0, len(eligible))
	for _, proposal := range eligible {
		options = append(options, Option{Label: proposal.Name, Value: proposal.RowKey})
	}
	d.Elements = append(d.Elements, Element{
		Type:     ElementSelect,
		Name:     FieldVideo,
		Label:    "Vidéo",
		Optional: true,
		Options:  options,
		Hint:     "Si non choisi, le bot va faire voter le channel.",
	})
	return d
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return strings.TrimSpace(string([]rune(value)[:limit]))
}
