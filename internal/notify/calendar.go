package notify

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/reminder"
)

// Calendar renders triggers as an iCalendar feed. Each trigger becomes one VEVENT
// starting at its next fire time, carrying an RRULE when it repeats and a
// display alarm at start. Repeating events use floating time, one-shots UTC.
func Calendar(triggers []reminder.Trigger, now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()

	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, t := range triggers {
		start, ok := t.NextFire(now)
		if !ok {
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, t.ID, config.ICalDomain))
		event.Props.SetText(config.PropSummary, t.Title)
		if t.Body != "" {
			event.Props.SetText(config.PropDescription, t.Body)
		}
		event.Props.Set(dtStampProp)

		dtStartProp := ical.NewProp(config.PropDTStart)
		if t.Repeats {
			// BYHOUR and BYMINUTE are wall-clock values, so the start is floating
			// local time and clients expand it in their own zone.
			dtStartProp.SetValueType(ical.ValueDateTime)
			dtStartProp.Value = start.Format(config.ICalFloatingFormat)
			event.Props.SetRecurrenceRule(t.Rule(start))
		} else {
			dtStartProp.SetDateTime(start.UTC())
		}
		event.Props.Set(dtStartProp)

		addAlarm(event, config.ICalAlarmAtStart, t.Title)
		cal.Children = append(cal.Children, event.Component)
	}

	// A feed with no events is still a valid VCALENDAR for subscribed clients.
	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

// addAlarm appends a DISPLAY alarm to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set the value directly to avoid a VALUE=TEXT parameter.
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}
