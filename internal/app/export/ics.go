// Package export renders the event collection into interchange formats.
package export

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/organizer-live/organizer/internal/contracts"
	"github.com/organizer-live/organizer/internal/palette"
)

const (
	productID = "-//organizer//organizer-api//EN"

	propIcon   = "X-ORGANIZER-ICON"
	propColour = "X-ORGANIZER-COLOUR"
)

// Calendar builds a VCALENDAR holding one all-day VEVENT per record. Icon
// and colour ride along as X- properties so a round trip loses nothing.
func Calendar(records []contracts.EventRecord, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(contracts.Collection)

	for _, rec := range records {
		ev := cal.AddEvent(rec.ID)
		ev.SetDtStampTime(now.UTC())
		ev.SetAllDayStartAt(rec.Date)
		ev.SetAllDayEndAt(rec.Date.AddDate(0, 0, 1))
		ev.SetSummary(rec.Title)
		if rec.Description != "" {
			ev.SetDescription(rec.Description)
		}
		ev.SetProperty(ical.ComponentProperty(propIcon), palette.NormalizeIcon(rec.Icon))
		ev.SetProperty(ical.ComponentProperty(propColour), palette.NormalizeColour(rec.Colour))
	}
	return cal
}

// ICS serializes the collection to iCalendar text.
func ICS(records []contracts.EventRecord, now time.Time) string {
	return Calendar(records, now).Serialize()
}
