package slack

const (
	ResponseEphemeral = "ephemeral"
	ResponseInChannel = "in_channel"
)

// Message is a chat message, either plain text or blocks with a text fallback.
type Message struct {
	ResponseType string  `json:"response_type,omitempty"`
	Text         string  `json:"text"`
	Blocks       []Block `json:"blocks,omitempty"`
}

type Block struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
}

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Section is a markdown section block.
func Section(markdown string) Block {
	return Block{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: markdown}}
}

func Divider() Block {
	return Block{Type: "divider"}
}
