// ABOUTME: Tests for the shared SMS conversation composer
// ABOUTME: Covers participants, owner classification, entity filtering, ordering and escaping
package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/harperreed/callbridge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConversation() *models.SharedConversation {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }
	smith := &models.EntityPerson{Name: "Agent Smith"}
	jones := &models.EntityPerson{Name: "Agent Jones"}

	return &models.SharedConversation{
		ID:           "conv-1",
		CreationTime: base,
		Owner:        &models.ConversationOwner{Name: "Sales Queue", ExtensionType: "User"},
		Entities: []models.ConversationEntity{
			{ID: "e1", RecordType: models.EntityAliveMessage, CreationTime: at(1), Direction: models.DirectionInbound, Text: "Hi there", From: &models.EntityPerson{PhoneNumber: "+15551234567"}},
			{ID: "e2", RecordType: models.EntityAliveMessage, CreationTime: at(2), Direction: models.DirectionOutbound, Text: `Hello <friend> & 'co' "quoted"`, Author: smith},
			{ID: "e3", RecordType: models.EntityThreadAssignedHint, CreationTime: at(3), Initiator: smith, Assignee: jones},
			{ID: "e4", RecordType: models.EntityAliveNote, CreationTime: at(4), Author: jones, Text: "internal note"},
			{ID: "e5", RecordType: models.EntityThreadResolvedHint, CreationTime: at(5), Initiator: smith, Text: "resolved-text"},
			{ID: "e6", RecordType: models.EntityThreadReopenedHint, CreationTime: at(6), Initiator: smith, Text: "reopened-text"},
			{ID: "e7", RecordType: models.EntityNoteHint, CreationTime: at(7), Author: smith, Text: "hint note"},
			{ID: "e8", RecordType: models.EntityThreadNoteAddedHint, CreationTime: at(8), Text: "orphan note"},
		},
	}
}

func TestComposeSharedSMSLogPlainText(t *testing.T) {
	subject, body, err := ComposeSharedSMSLog(SharedSMSParams{
		Format:       models.FormatPlainText,
		Conversation: sampleConversation(),
		ContactName:  "Carol",
	})
	require.NoError(t, err)

	assert.Equal(t, "Shared SMS conversation with Carol - 2024-03-01", subject)
	assert.Contains(t, body, "Owner: Sales Queue (call queue)\n")
	assert.Contains(t, body, "Participants:\n- Agent Smith\n- Agent Jones\n- Carol\n")
	assert.Contains(t, body, "Conversation (2 messages, 4 notes)\n")

	assert.Contains(t, body, "2024-03-01 10:01 AM Carol: Hi there")
	assert.Contains(t, body, `2024-03-01 10:02 AM Agent Smith: Hello <friend> & 'co' "quoted"`)
	assert.Contains(t, body, "2024-03-01 10:03 AM Conversation assigned to Agent Jones")
	assert.Contains(t, body, "2024-03-01 10:04 AM Note by Agent Jones: internal note")
	assert.Contains(t, body, "2024-03-01 10:08 AM Note by Unknown: orphan note")

	assert.NotContains(t, body, "resolved-text")
	assert.NotContains(t, body, "reopened-text")

	// Newest first.
	assert.Less(t, strings.Index(body, "orphan note"), strings.Index(body, "hint note"))
	assert.Less(t, strings.Index(body, "hint note"), strings.Index(body, "Hi there"))
}

func TestComposeSharedSMSLogHTMLEscapes(t *testing.T) {
	conv := sampleConversation()
	conv.Entities = append(conv.Entities, models.ConversationEntity{
		ID: "e9", RecordType: models.EntityAliveNote, CreationTime: conv.CreationTime.Add(time.Hour),
		Author: &models.EntityPerson{Name: "<script>"}, Text: "a & b",
	})

	_, body, err := ComposeSharedSMSLog(SharedSMSParams{
		Format:       models.FormatHTML,
		Conversation: conv,
		ContactName:  "O'Brien",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Hello &lt;friend&gt; &amp; &#39;co&#39; &#34;quoted&#34;")
	assert.Contains(t, body, "<li>O&#39;Brien</li>")
	assert.Contains(t, body, "<li>&lt;script&gt;</li>")
	assert.Contains(t, body, "Note by &lt;script&gt;: a &amp; b")
	assert.NotContains(t, body, "<friend>")
	assert.NotContains(t, body, "<script>")
}

func TestComposeSharedSMSLogMarkdownDoesNotEscape(t *testing.T) {
	_, body, err := ComposeSharedSMSLog(SharedSMSParams{
		Format:       models.FormatMarkdown,
		Conversation: sampleConversation(),
		ContactName:  "Carol",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "## Conversation summary\n")
	assert.Contains(t, body, "**Owner**: Sales Queue (call queue)\n")
	assert.Contains(t, body, "### Conversation (2 messages, 4 notes)\n")
	assert.Contains(t, body, `Hello <friend> & 'co' "quoted"`)
}

func TestComposeSharedSMSLogResolvedHintsCountNowhere(t *testing.T) {
	conv := &models.SharedConversation{
		CreationTime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Entities: []models.ConversationEntity{
			{ID: "r1", RecordType: models.EntityThreadResolvedHint, Text: "resolved-text"},
			{ID: "r2", RecordType: models.EntityThreadReopenedHint, Text: "reopened-text"},
			{ID: "r3", RecordType: models.EntityThreadCreatedHint, Text: "created-text"},
		},
	}
	for _, format := range []string{models.FormatPlainText, models.FormatHTML, models.FormatMarkdown} {
		_, body, err := ComposeSharedSMSLog(SharedSMSParams{Format: format, Conversation: conv, ContactName: "Carol"})
		require.NoError(t, err)
		assert.Contains(t, body, "Conversation (0 messages, 0 notes)")
		assert.NotContains(t, body, "resolved-text")
		assert.NotContains(t, body, "reopened-text")
		assert.NotContains(t, body, "created-text")
	}
}

func TestConversationOwnerClassification(t *testing.T) {
	tests := []struct {
		owner *models.ConversationOwner
		name  string
		queue bool
	}{
		{&models.ConversationOwner{Name: "Support", ExtensionType: "Department"}, "Support", true},
		{&models.ConversationOwner{Name: "Billing QUEUE", ExtensionType: "User"}, "Billing QUEUE", true},
		{&models.ConversationOwner{Name: "Dave", ExtensionType: "User"}, "Dave", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		name, queue := conversationOwner(tt.owner)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.queue, queue)
	}
}

func TestComposeSharedSMSLogTimezone(t *testing.T) {
	subject, body, err := ComposeSharedSMSLog(SharedSMSParams{
		Format:         models.FormatPlainText,
		Conversation:   sampleConversation(),
		ContactName:    "Carol",
		TimezoneOffset: "-11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Shared SMS conversation with Carol - 2024-02-29", subject)
	assert.Contains(t, body, "2024-02-29 11:01 PM Carol: Hi there")
	assert.Contains(t, body, "Owner: Sales Queue (call queue)")
}

func TestComposeSharedSMSLogUnsupportedFormat(t *testing.T) {
	_, _, err := ComposeSharedSMSLog(SharedSMSParams{Format: "pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
