package validator

import (
	"fmt"
	"sort"
	"strings"
	"syncup-api/core/constants"
	"syncup-api/core/validation"
	"syncup-api/modules/event/dto"
	"syncup-api/modules/event/entity"
	"syncup-api/modules/event/service"
	"unicode/utf8"
)

// ValidateCreateEvent normalizes req in place (trimmed name, default hours,
// sorted unique dates) and reports every invalid field.
func ValidateCreateEvent(req *dto.CreateEventRequest) *validation.Result {
	result := validation.NewResult()

	req.Name = strings.TrimSpace(req.Name)
	nameLen := utf8.RuneCountInString(req.Name)
	if nameLen < constants.EventNameMinLength || nameLen > constants.EventNameMaxLength {
		result.Add("name", fmt.Sprintf("Event name must be between %d and %d characters",
			constants.EventNameMinLength, constants.EventNameMaxLength))
	}

	req.SelectedDates = uniqueSortedDates(req.SelectedDates)
	if len(req.SelectedDates) == 0 {
		result.Add("selected_dates", "Select at least one date")
	}

	if strings.TrimSpace(req.StartTime) == "" {
		req.StartTime = constants.DefaultEventStartTime
	}
	if strings.TrimSpace(req.EndTime) == "" {
		req.EndTime = constants.DefaultEventEndTime
	}

	start, okStart := parseHourLabel(req.StartTime)
	end, okEnd := parseHourLabel(req.EndTime)
	if !okStart {
		result.Add("start_time", "Start time must be an hour label like 09:00")
	}
	if !okEnd {
		result.Add("end_time", "End time must be an hour label like 18:00")
	}
	if okStart && okEnd && end <= start {
		result.Add("end_time", "End time must be after start time")
	}
	if okStart {
		req.StartTime = fmt.Sprintf("%02d:00", start)
	}
	if okEnd {
		req.EndTime = fmt.Sprintf("%02d:00", end)
	}

	return result
}

// parseHourLabel accepts "HH:00" with an hour in 0..24.
func parseHourLabel(label string) (int, bool) {
	label = strings.TrimSpace(label)
	_, minutes, found := strings.Cut(label, ":")
	if !found || minutes != "00" {
		return 0, false
	}
	return service.ParseHour(label)
}

func uniqueSortedDates(dates entity.DateList) entity.DateList {
	seen := make(map[string]struct{}, len(dates))
	out := make(entity.DateList, 0, len(dates))
	for _, d := range dates {
		d = entity.NormalizeDate(d)
		key := d.Format(entity.DateLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ValidateGesture checks event types and that cell events carry a cell.
func ValidateGesture(req *dto.GestureRequest) *validation.Result {
	result := validation.NewResult()
	if len(req.Events) == 0 {
		result.Add("events", "At least one pointer event is required")
	}
	for i, ev := range req.Events {
		field := fmt.Sprintf("events[%d]", i)
		switch ev.Type {
		case dto.PointerDown, dto.PointerEnter:
			if _, err := entity.ParseDate(ev.Date); err != nil {
				result.Add(field+".date", "A valid date is required")
			}
			if service.TimeValue(ev.Time) < 0 {
				result.Add(field+".time", "A valid time is required")
			}
		case dto.PointerUp, dto.PointerRelease:
		default:
			result.Add(field+".type", "Type must be one of down, enter, up, release")
		}
	}
	return result
}
