// ABOUTME: Tests for duration, date and call journey formatting
// ABOUTME: Verifies English durations, timezone offsets and moment-style patterns
package compose

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/harperreed/callbridge/models"
	"github.com/stretchr/testify/assert"
)

func TestSecondsToHoursMinutesSeconds(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0 seconds"},
		{1, "1 second"},
		{59, "59 seconds"},
		{90, "1 minute, 30 seconds"},
		{125, "2 minutes, 5 seconds"},
		{3600, "1 hour"},
		{3661, "1 hour, 1 minute, 1 second"},
		{7322, "2 hours, 2 minutes, 2 seconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecondsToHoursMinutesSeconds(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestFormatDuration(t *testing.T) {
	n := 61
	assert.Equal(t, "1 minute, 1 second", FormatDuration(61))
	assert.Equal(t, "1 minute, 1 second", FormatDuration(&n))
	assert.Equal(t, "1 minute, 1 second", FormatDuration(61.0))
	assert.Equal(t, "1 minute, 1 second", FormatDuration(json.Number("61")))
	assert.Equal(t, "about a minute", FormatDuration("about a minute"))
	assert.Equal(t, "2 minutes, 5 seconds", FormatDuration("125"))
	assert.Equal(t, "2 minutes, 5 seconds", FormatDuration(" 125.2 "))
	assert.Equal(t, "", FormatDuration(nil))
}

func TestTimezoneOffsets(t *testing.T) {
	at := time.Date(2024, 1, 15, 14, 5, 9, 0, time.UTC)

	tests := []struct {
		name   string
		offset any
		want   string
	}{
		{"none", nil, "2024-01-15 02:05:09 PM"},
		{"empty string", "", "2024-01-15 02:05:09 PM"},
		{"hh:mm string", "+05:30", "2024-01-15 07:35:09 PM"},
		{"negative hh:mm string", "-08:00", "2024-01-15 06:05:09 AM"},
		{"numeric hours string", "-8", "2024-01-15 06:05:09 AM"},
		{"numeric minutes string", "-480", "2024-01-15 06:05:09 AM"},
		{"int hours", 8, "2024-01-15 10:05:09 PM"},
		{"float minutes", 330.0, "2024-01-15 07:35:09 PM"},
		{"garbage", "not an offset", "2024-01-15 02:05:09 PM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDateTime(at, tt.offset, ""))
		})
	}
}

func TestFormatDateTimePatterns(t *testing.T) {
	at := time.Date(2024, 3, 5, 9, 7, 3, 0, time.UTC)

	assert.Equal(t, "05/03/2024 09:07", FormatDateTime(at, nil, "DD/MM/YYYY HH:mm"))
	assert.Equal(t, "Tuesday, March 5 24", FormatDateTime(at, nil, "dddd, MMMM D YY"))
	assert.Equal(t, "Mar 5 at 9:07 am", FormatDateTime(at, nil, "MMM D [at] h:mm a"))
	assert.Equal(t, "2024-03-05T11:07:03+02:00", FormatDateTime(at, "+02:00", "YYYY-MM-DD[T]HH:mm:ssZ"))
}

func TestPartyDescriptor(t *testing.T) {
	assert.Equal(t, "Alice, +15551112222, ext 101", PartyDescriptor(models.CallParty{Name: "Alice", PhoneNumber: "+15551112222", ExtensionNumber: "101"}))
	assert.Equal(t, "Alice, +15551112222", PartyDescriptor(models.CallParty{Name: "Alice", PhoneNumber: "+15551112222"}))
	assert.Equal(t, "ext 101", PartyDescriptor(models.CallParty{ExtensionNumber: "101"}))
	assert.Equal(t, "Alice", PartyDescriptor(models.CallParty{Name: "Alice"}))
	assert.Equal(t, "", PartyDescriptor(models.CallParty{}))
}

func TestCallJourney(t *testing.T) {
	legs := []models.CallLeg{
		{Direction: models.DirectionOutbound, From: models.CallParty{Name: "Alice", PhoneNumber: "+15551112222", ExtensionNumber: "101"}},
		{Direction: models.DirectionOutbound, Duration: 30, To: models.CallParty{Name: "Bob", PhoneNumber: "+15553334444"}},
		{Direction: models.DirectionOutbound, Duration: 1, To: models.CallParty{ExtensionNumber: "200"}},
	}
	assert.Equal(t,
		"Made call from Alice, +15551112222, ext 101\n"+
			"Transferred to Bob, +15553334444, duration: 30 seconds\n"+
			"Transferred to ext 200, duration: 1 second",
		CallJourney(legs))

	inbound := []models.CallLeg{{Direction: models.DirectionInbound, To: models.CallParty{Name: "Support", PhoneNumber: "+15550000000"}}}
	assert.Equal(t, "Received call at Support, +15550000000", CallJourney(inbound))
	assert.Equal(t, "", CallJourney(nil))
}

func TestUpsertCallLegsReplacesJourney(t *testing.T) {
	legs := []models.CallLeg{
		{Direction: models.DirectionInbound, To: models.CallParty{Name: "Support"}},
	}
	body, err := UpsertCallLegs("- Result: Completed\n", legs, models.FormatPlainText)
	assert.NoError(t, err)
	assert.Equal(t, "- Result: Completed\n- Call journey: Received call at Support\n", body)

	legs = append(legs, models.CallLeg{Duration: 12, To: models.CallParty{Name: "Bob"}})
	body, err = UpsertCallLegs(body, legs, models.FormatPlainText)
	assert.NoError(t, err)
	assert.Equal(t, "- Result: Completed\n- Call journey: Received call at Support\nTransferred to Bob, duration: 12 seconds\n", body)
}
