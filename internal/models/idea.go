// Package models holds the idea record shared by the repository, the
// renderer and the HTTP layer.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// DateLayout is the format of DateCreated and Update.Date.
	DateLayout = "2006-01-02"
	// TimestampLayout is the format of GeneratedAt.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Update is one dated journal entry on an idea. Entries are append-only
// and stored in chronological order.
type Update struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Idea is the persisted record, written pretty-printed as idea.json in the
// idea's folder.
type Idea struct {
	Folder               string   `json:"folder"`
	Title                string   `json:"title"`
	DateCreated          string   `json:"dateCreated"`
	Summary              string   `json:"summary"`
	Trigger              string   `json:"trigger"`
	Description          string   `json:"description"`
	UseCases             []string `json:"useCases"`
	PotentialImpact      string   `json:"potentialImpact"`
	Challenges           string   `json:"challenges"`
	CurrentUnderstanding string   `json:"currentUnderstanding"`
	Updates              []Update `json:"updates"`
	GeneratedAt          string   `json:"generatedAt"`
}

// Draft is what a caller may supply when saving a new idea. Title is the
// only required field; DateCreated defaults to today.
type Draft struct {
	Title                string `json:"title"`
	DateCreated          string `json:"dateCreated"`
	Summary              string `json:"summary"`
	Trigger              string `json:"trigger"`
	Description          string `json:"description"`
	UseCases             Lines  `json:"useCases"`
	PotentialImpact      string `json:"potentialImpact"`
	Challenges           string `json:"challenges"`
	CurrentUnderstanding string `json:"currentUnderstanding"`
}

// Summary is the dashboard projection of an idea.
type Summary struct {
	Folder       string `json:"folder"`
	Title        string `json:"title"`
	DateCreated  string `json:"dateCreated"`
	Summary      string `json:"summary"`
	UpdatesCount int    `json:"updatesCount"`
}

// Lines accepts either a JSON array of strings or a single string with one
// entry per line. Array entries are kept as given; in the string form only
// empty lines are dropped.
type Lines []string

func (l *Lines) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = splitLines(single)
	return nil
}

func splitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (i Idea) Summarize() Summary {
	return Summary{
		Folder:       i.Folder,
		Title:        i.Title,
		DateCreated:  i.DateCreated,
		Summary:      i.Summary,
		UpdatesCount: len(i.Updates),
	}
}
