package faq

import (
	"regexp"
	"strings"
)

// Topic identifies a clinic policy subject with a canned answer.
type Topic string

const (
	TopicHours        Topic = "hours"
	TopicLocation     Topic = "location"
	TopicInsurance    Topic = "insurance"
	TopicPayment      Topic = "payment"
	TopicCancellation Topic = "cancellation_policy"
	TopicFirstVisit   Topic = "first_visit"
	TopicCovid        Topic = "covid_policy"
	TopicOther        Topic = "other"
)

const (
	patternConfidence    = 0.95
	keywordConfidence    = 0.75
	classifierConfidence = 0.8
)

// knowledgeEntry is a canned clinic-policy response. Pattern matches are
// authoritative; keywords are a looser fallback requiring at least two hits.
type knowledgeEntry struct {
	Topic    Topic
	Pattern  *regexp.Regexp
	Keywords []string
	Response string
}

var knowledgeBase = []knowledgeEntry{
	{
		Topic:    TopicHours,
		Pattern:  regexp.MustCompile(`(?i)(opening|office|clinic|business)\s+hours|what\s+(time|hours).*(open|close)|when.*(open|close)`),
		Keywords: []string{"hours", "open", "closed", "time", "weekend", "saturday", "sunday"},
		Response: `Harbor Medical Clinic is open Monday through Friday from 9:00 AM to 5:00 PM, and Saturday from 9:00 AM to 1:00 PM. We are closed Sundays and major holidays. The clinic also closes for lunch from 12:00 PM to 1:00 PM. Would you like to book an appointment?`,
	},
	{
		Topic:    TopicLocation,
		Pattern:  regexp.MustCompile(`(?i)(where|address|located|location|directions|how\s+to\s+get|parking)`),
		Keywords: []string{"address", "location", "parking", "directions", "find"},
		Response: `We're located at 450 Harbor View Drive, Suite 200. Free patient parking is available in the garage under the building; take the elevator to the second floor. If you're using public transit, the Harbor Station stop is a two-minute walk away.`,
	},
	{
		Topic:    TopicInsurance,
		Pattern:  regexp.MustCompile(`(?i)insurance|in[\s-]?network|coverage|covered\s+by`),
		Keywords: []string{"insurance", "coverage", "plan", "network", "accept"},
		Response: `We accept most major insurance plans, including PPO and HMO networks. Please bring your insurance card to your visit so we can verify coverage at check-in. If you'd like us to confirm a specific plan before your appointment, call our front desk and we'll check for you.`,
	},
	{
		Topic:    TopicPayment,
		Pattern:  regexp.MustCompile(`(?i)(cost|price|how\s+much|payment\s+(method|option)|pay\s+with|self[\s-]?pay)`),
		Keywords: []string{"cost", "price", "payment", "pay", "charge", "fee"},
		Response: `Visit costs depend on your insurance coverage and the type of appointment. For self-pay patients we offer transparent flat rates; the front desk can quote the exact amount for your visit type. We accept all major credit cards, debit, HSA/FSA cards, and cash.`,
	},
	{
		Topic:    TopicCancellation,
		Pattern:  regexp.MustCompile(`(?i)(cancellation|no[\s-]?show)\s+(policy|fee)|policy.*(cancel|reschedul)|fee.*(cancel|miss)`),
		Keywords: []string{"cancellation", "policy", "fee", "late", "miss"},
		Response: `You can cancel or reschedule an appointment at no charge up to 24 hours in advance. Cancellations with less notice, or missed appointments, may incur a fee. Just give me your confirmation code if you'd like to cancel or move an existing appointment now.`,
	},
	{
		Topic:    TopicFirstVisit,
		Pattern:  regexp.MustCompile(`(?i)(what|anything).*(bring|need)|first\s+(visit|appointment|time)|new\s+patient`),
		Keywords: []string{"bring", "first", "visit", "documents", "required", "new"},
		Response: `For a first visit, please bring a photo ID, your insurance card, and a list of any medications you're currently taking. Arriving about 15 minutes early gives you time to complete new-patient forms. If you have recent lab results or referral paperwork, bring those too.`,
	},
	{
		Topic:    TopicCovid,
		Pattern:  regexp.MustCompile(`(?i)covid|mask|vaccination\s+requirement`),
		Keywords: []string{"covid", "mask", "sick", "symptoms"},
		Response: `Masks are optional in the clinic but appreciated if you have respiratory symptoms. If you're feeling unwell with fever or flu-like symptoms, please call ahead; we may move your visit to a telehealth slot or reschedule at no charge.`,
	},
}

// lookupKnowledge matches a question against the knowledge base. Pattern
// matches win over keyword matches; among keyword matches the entry with the
// most hits wins.
func lookupKnowledge(question string) (Answer, bool) {
	lower := strings.ToLower(question)

	for _, e := range knowledgeBase {
		if e.Pattern.MatchString(question) {
			return Answer{Text: e.Response, Topic: e.Topic, Confidence: patternConfidence}, true
		}
	}

	var best *knowledgeEntry
	bestHits := 0
	for i := range knowledgeBase {
		e := &knowledgeBase[i]
		hits := 0
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = e, hits
		}
	}
	if best != nil && bestHits >= 2 {
		return Answer{Text: best.Response, Topic: best.Topic, Confidence: keywordConfidence}, true
	}
	return Answer{}, false
}

// responseForTopic returns the canned response for a classified topic, or
// empty for TopicOther and unknown topics.
func responseForTopic(topic Topic) string {
	for _, e := range knowledgeBase {
		if e.Topic == topic {
			return e.Response
		}
	}
	return ""
}

func validTopic(topic Topic) bool {
	for _, e := range knowledgeBase {
		if e.Topic == topic {
			return true
		}
	}
	return false
}
