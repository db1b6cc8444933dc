package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harborclinic/scheduling-agent/internal/calendar"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
)

// Extracted holds whatever scheduling details a single utterance contained.
// Zero-valued fields mean the utterance did not mention them.
type Extracted struct {
	AppointmentType  scheduling.AppointmentType
	Date             string
	StartTime        string
	Name             string
	Email            string
	Phone            string
	ConfirmationCode string
}

var (
	extractEmailRE = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	extractPhoneRE = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
	extractCodeRE  = regexp.MustCompile(`\b[A-Z0-9]{6}\b`)
	extractNameRE  = regexp.MustCompile(`(?i)(?:my name is|my name's|this is|i am|i'm)\s+([A-Za-z][A-Za-z'.-]+(?:\s+[A-Za-z][A-Za-z'.-]+){1,2})`)
	isoDateRE      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayRE     = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	clockTimeRE    = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24RE      = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	ordinalRE      = regexp.MustCompile(`(?i)\b(?:the\s+)?(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th|option\s+[1-5]|number\s+[1-5])\b`)
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

var weekdayNames = []struct {
	name string
	wd   time.Weekday
}{
	{"sunday", time.Sunday}, {"monday", time.Monday}, {"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday}, {"thursday", time.Thursday},
	{"friday", time.Friday}, {"saturday", time.Saturday},
}

// Extract pulls every scheduling detail it can recognize out of one
// utterance. now anchors relative dates like "tomorrow" and "next Friday".
func Extract(message string, now time.Time) Extracted {
	out := Extracted{
		AppointmentType: extractAppointmentType(message),
		Date:            extractDate(message, now),
		StartTime:       extractTime(message),
		Email:           extractEmailRE.FindString(message),
	}

	// Phones are found after stripping the email so a numeric local part is
	// not mistaken for a phone number.
	withoutEmail := message
	if out.Email != "" {
		withoutEmail = strings.Replace(message, out.Email, "", 1)
	}
	out.Phone = strings.TrimSpace(extractPhoneRE.FindString(withoutEmail))

	if m := extractNameRE.FindStringSubmatch(message); len(m) == 2 {
		out.Name = strings.TrimSpace(m[1])
	}

	out.ConfirmationCode = extractConfirmationCode(message)
	return out
}

// appointmentPhrases maps how patients actually talk to appointment types.
// Checked before reason-based inference.
var appointmentPhrases = []struct {
	phrase string
	t      scheduling.AppointmentType
}{
	{"follow-up", scheduling.FollowUp},
	{"follow up", scheduling.FollowUp},
	{"followup", scheduling.FollowUp},
	{"physical", scheduling.PhysicalExam},
	{"annual exam", scheduling.PhysicalExam},
	{"check-up", scheduling.PhysicalExam},
	{"checkup", scheduling.PhysicalExam},
	{"specialist", scheduling.Specialist},
	{"referral", scheduling.Specialist},
	{"consultation", scheduling.Consultation},
	{"consult", scheduling.Consultation},
}

func extractAppointmentType(message string) scheduling.AppointmentType {
	lower := strings.ToLower(message)
	for _, p := range appointmentPhrases {
		if strings.Contains(lower, p.phrase) {
			return p.t
		}
	}
	return ""
}

// InferTypeFromReason guesses an appointment type from a stated reason for
// the visit when the patient never names one. A new complaint defaults to a
// consultation.
func InferTypeFromReason(reason string) scheduling.AppointmentType {
	if t := extractAppointmentType(reason); t != "" {
		return t
	}
	if strings.TrimSpace(reason) == "" {
		return ""
	}
	return scheduling.Consultation
}

func extractDate(message string, now time.Time) string {
	lower := strings.ToLower(message)

	if m := isoDateRE.FindStringSubmatch(message); len(m) == 4 {
		if _, err := time.Parse(calendar.DateLayout, m[0]); err == nil {
			return m[0]
		}
	}

	if m := monthDayRE.FindStringSubmatch(message); len(m) == 3 {
		month := monthNumbers[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year := now.Year()
		candidate := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		// A month that already passed means next year.
		if candidate.Before(now.Truncate(24 * time.Hour)) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate.Format(calendar.DateLayout)
	}

	switch {
	case strings.Contains(lower, "day after tomorrow"):
		return now.AddDate(0, 0, 2).Format(calendar.DateLayout)
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format(calendar.DateLayout)
	case strings.Contains(lower, "today"):
		return now.Format(calendar.DateLayout)
	}

	for _, w := range weekdayNames {
		if !strings.Contains(lower, w.name) {
			continue
		}
		days := (int(w.wd) - int(now.Weekday()) + 7) % 7
		// "Friday" said on a Friday means next week's.
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, days).Format(calendar.DateLayout)
	}

	return ""
}

func extractTime(message string) string {
	if m := clockTimeRE.FindStringSubmatch(message); len(m) == 4 {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ToLower(m[3])
		if meridiem == "pm" && hour < 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
		if hour > 23 || minute > 59 {
			return ""
		}
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}

	if m := clock24RE.FindStringSubmatch(message); len(m) == 3 {
		hour, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", hour, m[2])
	}

	// "noon" is the only vague word precise enough to act on.
	if strings.Contains(strings.ToLower(message), "noon") {
		return "12:00"
	}
	return ""
}

var earliestWords = []string{
	"next available", "earliest", "soonest", "as soon as", "whenever",
	"any time", "anytime", "first opening",
}

// WantsEarliest reports whether the patient has no date preference and just
// wants the next opening.
func WantsEarliest(message string) bool {
	lower := strings.ToLower(message)
	for _, w := range earliestWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// extractConfirmationCode looks for a 6-character alphanumeric token. Plain
// uppercase words also match the shape, so a token with no digit only counts
// when the message talks about a code.
func extractConfirmationCode(message string) string {
	upper := strings.ToUpper(message)
	mentionsCode := strings.Contains(strings.ToLower(message), "code") ||
		strings.Contains(strings.ToLower(message), "confirmation")
	for _, token := range extractCodeRE.FindAllString(upper, -1) {
		hasDigit := strings.ContainsAny(token, "0123456789")
		if hasDigit || mentionsCode {
			return token
		}
	}
	return ""
}

// SelectedSlot resolves a reply against the offered slot list: an ordinal
// ("the second one"), an exact time, or a date+time all count as selections.
func SelectedSlot(message string, offered []scheduling.Slot, now time.Time) (scheduling.Slot, bool) {
	if len(offered) == 0 {
		return scheduling.Slot{}, false
	}

	// Group 1 holds the bare ordinal, without any leading "the ".
	if m := ordinalRE.FindStringSubmatch(strings.ToLower(message)); m != nil {
		idx := ordinalIndex(m[1])
		if idx >= 0 && idx < len(offered) {
			return offered[idx], true
		}
	}

	wantTime := extractTime(message)
	if wantTime == "" {
		return scheduling.Slot{}, false
	}
	wantDate := extractDate(message, now)
	for _, s := range offered {
		if s.StartTime() != wantTime {
			continue
		}
		if wantDate == "" || s.Date == wantDate {
			return s, true
		}
	}
	return scheduling.Slot{}, false
}

func ordinalIndex(word string) int {
	word = strings.ToLower(strings.TrimSpace(word))
	switch word {
	case "first", "1st":
		return 0
	case "second", "2nd":
		return 1
	case "third", "3rd":
		return 2
	case "fourth", "4th":
		return 3
	case "fifth", "5th":
		return 4
	}
	if n := word[len(word)-1]; n >= '1' && n <= '5' {
		return int(n - '1')
	}
	return -1
}

var affirmations = []string{
	"yes", "yeah", "yep", "sure", "correct", "confirm", "sounds good",
	"that works", "perfect", "go ahead", "please do", "book it", "ok", "okay",
}

var negations = []string{
	"no", "nope", "nah", "none of these", "none of those", "don't", "do not",
	"doesn't work", "cancel that", "never mind", "nevermind", "not really",
}

// IsAffirmation reports whether a short reply is an explicit yes.
func IsAffirmation(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = strings.Trim(lower, ".!,")
	for _, a := range affirmations {
		if lower == a || strings.HasPrefix(lower, a+" ") || strings.HasPrefix(lower, a+",") {
			return true
		}
	}
	return false
}

// IsNegation reports whether a reply declines or rejects.
func IsNegation(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = strings.Trim(lower, ".!,")
	for _, n := range negations {
		if lower == n {
			return true
		}
		// Multi-word negations match anywhere; single words only lead the
		// reply, so "no" never matches inside "know".
		if strings.Contains(n, " ") {
			if strings.Contains(lower, n) {
				return true
			}
		} else if strings.HasPrefix(lower, n+" ") || strings.HasPrefix(lower, n+",") {
			return true
		}
	}
	return false
}

var schedulingIntentWords = []string{
	"appointment", "book", "schedule", "see a doctor", "see the doctor",
	"come in", "visit", "slot", "available", "availability", "opening",
}

// HasSchedulingIntent reports whether an utterance starts a scheduling task.
func HasSchedulingIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, w := range schedulingIntentWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// TaskIntentOf classifies which scheduling task an utterance asks for.
func TaskIntentOf(message string) TaskIntent {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "reschedule") || strings.Contains(lower, "move my") ||
		strings.Contains(lower, "change my appointment"):
		return IntentReschedule
	case strings.Contains(lower, "cancel"):
		return IntentCancel
	case strings.Contains(lower, "look up") || strings.Contains(lower, "find my") ||
		strings.Contains(lower, "my appointment details") || strings.Contains(lower, "when is my"):
		return IntentLookup
	case HasSchedulingIntent(lower) || extractAppointmentType(message) != "":
		return IntentBook
	default:
		return IntentNone
	}
}
