// ABOUTME: Shared SMS conversation composer producing a subject and a timeline body
// ABOUTME: Renders participants, ownership, counts and entries in plain text, HTML or Markdown
package compose

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/callbridge/models"
)

const (
	entryTimeFormat = "YYYY-MM-DD hh:mm A"
	unknownPerson   = "Unknown"
)

// SharedSMSParams are the inputs of ComposeSharedSMSLog.
type SharedSMSParams struct {
	Format         string
	Conversation   *models.SharedConversation
	ContactName    string
	TimezoneOffset any
}

type entryKind int

const (
	entryMessage entryKind = iota
	entryAssignment
	entryNote
)

type sharedEntry struct {
	kind   entryKind
	at     time.Time
	person string
	text   string
}

// ComposeSharedSMSLog renders a whole shared conversation. Resolved, reopened
// and created hints are recognized but never rendered or counted.
func ComposeSharedSMSLog(p SharedSMSParams) (subject, body string, err error) {
	if err := checkFormat(p.Format); err != nil {
		return "", "", err
	}
	conv := p.Conversation
	if conv == nil {
		conv = &models.SharedConversation{}
	}

	participants := sharedParticipants(conv, p.ContactName)
	ownerName, isQueue := conversationOwner(conv.Owner)

	var messages, notes int
	var entries []sharedEntry
	for _, e := range conv.Entities {
		switch e.RecordType {
		case models.EntityAliveMessage:
			messages++
			sender := personName(e.Author, e.From)
			if e.Direction == models.DirectionInbound {
				sender = p.ContactName
				if sender == "" {
					sender = personName(e.From)
				}
			}
			entries = append(entries, sharedEntry{kind: entryMessage, at: e.CreationTime, person: sender, text: e.Text})
		case models.EntityThreadAssignedHint:
			notes++
			entries = append(entries, sharedEntry{kind: entryAssignment, at: e.CreationTime, person: personName(e.Assignee)})
		case models.EntityAliveNote, models.EntityNoteHint, models.EntityThreadNoteAddedHint:
			notes++
			entries = append(entries, sharedEntry{kind: entryNote, at: e.CreationTime, person: personName(e.Author, e.Initiator), text: e.Text})
		case models.EntityThreadResolvedHint, models.EntityThreadReopenedHint, models.EntityThreadCreatedHint:
			// Known hints that are intentionally left out of the log.
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })

	start := conv.CreationTime
	if start.IsZero() && len(conv.Entities) > 0 {
		start = conv.Entities[0].CreationTime
	}
	day := FormatDateTime(start, p.TimezoneOffset, "YYYY-MM-DD")

	contact := p.ContactName
	if contact == "" {
		contact = unknownPerson
	}
	subject = fmt.Sprintf("Shared SMS conversation with %s - %s", contact, day)

	r := sharedRenderer{format: p.Format, offset: p.TimezoneOffset}
	body = r.render(sharedView{
		date:         day,
		owner:        ownerName,
		ownerIsQueue: isQueue,
		participants: participants,
		messages:     messages,
		notes:        notes,
		entries:      entries,
	})
	return subject, body, nil
}

func sharedParticipants(conv *models.SharedConversation, contactName string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, e := range conv.Entities {
		for _, p := range []*models.EntityPerson{e.Author, e.From, e.Initiator, e.Assignee} {
			if p != nil {
				add(p.Name)
			}
		}
	}
	add(contactName)
	return out
}

// conversationOwner classifies the owner as a call queue when it is a
// department extension or its name mentions a queue.
func conversationOwner(owner *models.ConversationOwner) (string, bool) {
	if owner == nil {
		return "", false
	}
	isQueue := owner.ExtensionType == "Department" || strings.Contains(strings.ToLower(owner.Name), "queue")
	return owner.Name, isQueue
}

func personName(people ...*models.EntityPerson) string {
	for _, p := range people {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			return p.Name
		}
	}
	return unknownPerson
}

type sharedView struct {
	date         string
	owner        string
	ownerIsQueue bool
	participants []string
	messages     int
	notes        int
	entries      []sharedEntry
}

type sharedRenderer struct {
	format string
	offset any
}

func (r sharedRenderer) esc(s string) string {
	if r.format == models.FormatHTML {
		return html.EscapeString(s)
	}
	return s
}

func (r sharedRenderer) entryLine(e sharedEntry) string {
	at := FormatDateTime(e.at, r.offset, entryTimeFormat)
	person, text := r.esc(e.person), r.esc(e.text)
	switch r.format {
	case models.FormatHTML:
		at = "<b>" + at + "</b>"
	case models.FormatMarkdown:
		at = "**" + at + "**"
	}
	switch e.kind {
	case entryAssignment:
		return fmt.Sprintf("%s Conversation assigned to %s", at, person)
	case entryNote:
		return fmt.Sprintf("%s Note by %s: %s", at, person, text)
	default:
		return fmt.Sprintf("%s %s: %s", at, person, text)
	}
}

func (r sharedRenderer) ownerLine(v sharedView) string {
	if v.owner == "" {
		return ""
	}
	kind := "user"
	if v.ownerIsQueue {
		kind = "call queue"
	}
	return fmt.Sprintf("Owner: %s (%s)", r.esc(v.owner), kind)
}

func countsLine(v sharedView) string {
	return fmt.Sprintf("Conversation (%s, %s)", plural(v.messages, "message"), plural(v.notes, "note"))
}

func (r sharedRenderer) render(v sharedView) string {
	var b strings.Builder
	switch r.format {
	case models.FormatHTML:
		b.WriteString("<div><b>Conversation summary</b><br>")
		b.WriteString("Date: " + v.date + "<br>")
		if line := r.ownerLine(v); line != "" {
			b.WriteString(line + "<br>")
		}
		b.WriteString("<b>Participants</b><ul>")
		for _, p := range v.participants {
			b.WriteString("<li>" + r.esc(p) + "</li>")
		}
		b.WriteString("</ul>")
		b.WriteString("<b>" + countsLine(v) + "</b><br>")
		for _, e := range v.entries {
			b.WriteString("<p>" + strings.ReplaceAll(r.entryLine(e), "\n", "<br>") + "</p>")
		}
		b.WriteString("</div>")
	case models.FormatMarkdown:
		b.WriteString("## Conversation summary\n")
		b.WriteString("**Date**: " + v.date + "\n")
		if line := r.ownerLine(v); line != "" {
			b.WriteString("**Owner**:" + strings.TrimPrefix(line, "Owner:") + "\n")
		}
		b.WriteString("### Participants\n")
		for _, p := range v.participants {
			b.WriteString("- " + p + "\n")
		}
		b.WriteString("### " + countsLine(v) + "\n")
		b.WriteString("---\n")
		for _, e := range v.entries {
			b.WriteString(r.entryLine(e) + "\n\n")
		}
		b.WriteString("---\n")
	default:
		b.WriteString("Conversation summary\n")
		b.WriteString("Date: " + v.date + "\n")
		if line := r.ownerLine(v); line != "" {
			b.WriteString(line + "\n")
		}
		b.WriteString("Participants:\n")
		for _, p := range v.participants {
			b.WriteString("- " + p + "\n")
		}
		b.WriteString(countsLine(v) + "\n")
		b.WriteString("BEGIN\n------------\n")
		for _, e := range v.entries {
			b.WriteString(r.entryLine(e) + "\n------------\n")
		}
		b.WriteString("END\n")
	}
	return b.String()
}
