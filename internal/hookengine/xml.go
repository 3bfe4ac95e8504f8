package hookengine

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hookguard/hookguard/internal/intent"
)

// intentContextXML mirrors the <intent_context> shape from design doc
// §4.5.1 exactly, field for field.
type intentContextXML struct {
	XMLName            xml.Name `xml:"intent_context"`
	ID                 string   `xml:"id"`
	Name               string   `xml:"name"`
	Status             string   `xml:"status"`
	OwnedScope         patterns `xml:"owned_scope"`
	Constraints        items    `xml:"constraints"`
	AcceptanceCriteria items    `xml:"acceptance_criteria"`
}

type patterns struct {
	Pattern []string `xml:"pattern"`
}

type items struct {
	Item []string `xml:"item"`
}

// renderIntentContext builds the <intent_context> block returned by a
// successful SelectIntent.
func renderIntentContext(it *intent.Intent) (string, error) {
	doc := intentContextXML{
		ID:                 it.ID,
		Name:               it.Name,
		Status:             string(it.Status),
		OwnedScope:         patterns{Pattern: it.OwnedScope},
		Constraints:        items{Item: it.Constraints},
		AcceptanceCriteria: items{Item: it.AcceptanceCriteria},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// renderSelectIntentError builds the ERROR string returned when the
// requested intent id cannot be resolved (design doc §4.5.1): it begins
// with ERROR, echoes the offered id, and enumerates available ids.
func renderSelectIntentError(token, offeredID string, availableIDs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ERROR: %s: intent %q not found.", token, offeredID)
	if len(availableIDs) > 0 {
		fmt.Fprintf(&b, " Available intents: %s.", strings.Join(availableIDs, ", "))
	} else {
		b.WriteString(" No intents are currently declared in the registry.")
	}
	return b.String()
}

// renderRegistryUnreadableError builds the ERROR string returned when
// the registry itself cannot be parsed.
func renderRegistryUnreadableError(offeredID string, cause error) string {
	return fmt.Sprintf("ERROR: %s: could not read the intent registry while resolving %q: %v",
		TokenRegistryUnreadable, offeredID, cause)
}

// PromptFragment returns the canned prompt fragment listing currently
// available intent ids, for the host to prepend to its system prompt
// (design doc §6 "Prompt surface").
func PromptFragment(availableIDs []string) string {
	var b strings.Builder
	b.WriteString("Before calling any file-mutating tool, you must first call select_active_intent ")
	b.WriteString("with one of the declared intent ids below. Your first tool call must be select_active_intent.\n")
	if len(availableIDs) == 0 {
		b.WriteString("No intents are currently declared.")
		return b.String()
	}
	b.WriteString("Available intents: ")
	b.WriteString(strings.Join(availableIDs, ", "))
	return b.String()
}
