package flow

import (
	"regexp"
	"strings"
	"time"
)

// RenderContext carries the values available for template placeholders when a
// candidate script is rendered for a specific contact.
type RenderContext struct {
	ContactName      string
	ClinicName       string
	BookingLink      string
	AppointmentAt    *time.Time
	Location         *time.Location
	SelectionSummary string
}

// placeholderFallbacks render when a value is missing so an operator never
// sees a raw {{token}} in the composer.
var placeholderFallbacks = map[string]string{
	"name":              "there",
	"clinic_name":       "our clinic",
	"booking_link":      "our booking page",
	"appointment_time":  "your scheduled time",
	"selection_summary": "your selections",
}

var placeholderPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// Render substitutes template placeholders from ctx. Unknown or missing values
// fall back to a human-readable phrase rather than the raw token.
func Render(template string, ctx RenderContext) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value := ctx.value(name); value != "" {
			return value
		}
		if fallback, ok := placeholderFallbacks[name]; ok {
			return fallback
		}
		return "your " + strings.ReplaceAll(name, "_", " ")
	})
}

func (ctx RenderContext) value(name string) string {
	switch name {
	case "name":
		return ctx.ContactName
	case "clinic_name":
		return ctx.ClinicName
	case "booking_link":
		return ctx.BookingLink
	case "selection_summary":
		return ctx.SelectionSummary
	case "appointment_time":
		if ctx.AppointmentAt == nil {
			return ""
		}
		loc := ctx.Location
		if loc == nil {
			loc = time.Local
		}
		return ctx.AppointmentAt.In(loc).Format("Monday, Jan 2 at 3:04 PM")
	}
	return ""
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
