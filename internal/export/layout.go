package export

import (
	"fmt"
	"strings"

	"ideajournal/internal/models"
)

// BlockKind identifies how a layout block is drawn.
type BlockKind int

const (
	KindTitle BlockKind = iota
	KindByline
	KindSection
	KindList
	KindUpdates
	KindFooter
)

func (k BlockKind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindByline:
		return "byline"
	case KindSection:
		return "section"
	case KindList:
		return "list"
	case KindUpdates:
		return "updates"
	case KindFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// Placeholder stands in for an absent section body or an empty list.
const Placeholder = "-"

// Block is one element of the document in drawing order. Label is set for
// sections, lists and updates; Text for everything except lists and updates.
type Block struct {
	Kind    BlockKind
	Label   string
	Text    string
	Items   []string
	Updates []models.Update
}

// Layout returns the blocks of an idea's document. It is a pure function of
// the record; generatedAt is taken from the record, never from the clock.
func Layout(idea models.Idea) []Block {
	blocks := []Block{
		{Kind: KindTitle, Text: idea.Title},
		{Kind: KindByline, Text: fmt.Sprintf("Published on %s · Idea Journal", idea.DateCreated)},
		section("Summary", idea.Summary),
		section("Trigger", idea.Trigger),
		section("Description", idea.Description),
		{Kind: KindList, Label: "Use Cases", Items: idea.UseCases},
		section("Impact", idea.PotentialImpact),
		section("Challenges", idea.Challenges),
		section("Current Understanding", idea.CurrentUnderstanding),
	}
	if len(idea.Updates) > 0 {
		blocks = append(blocks, Block{Kind: KindUpdates, Label: "Updates", Updates: idea.Updates})
	}
	blocks = append(blocks, Block{Kind: KindFooter, Text: "Generated on " + idea.GeneratedAt})
	return blocks
}

// UpdateLine is the markdown form of one update entry.
func UpdateLine(u models.Update) string {
	return fmt.Sprintf("**%s** — %s", u.Date, u.Text)
}

func section(label, body string) Block {
	if strings.TrimSpace(body) == "" {
		body = Placeholder
	}
	return Block{Kind: KindSection, Label: label, Text: body}
}
