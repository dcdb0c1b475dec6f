package evaluation

import "strings"

// ViolationTag names the rule family an action tripped.
type ViolationTag string

const (
	TagSecurityBypass      ViolationTag = "SecurityBypass"
	TagPrivacyViolation    ViolationTag = "PrivacyViolation"
	TagQualityViolation    ViolationTag = "QualityViolation"
	TagComplianceViolation ViolationTag = "ComplianceViolation"
)

// violationRule applies when the principle text mentions any of the family
// keywords; it then scans the action text for red-flag phrases. Phrases are
// matched literally; near-synonyms are a policy decision left to rule edits.
type violationRule struct {
	tag               ViolationTag
	principleKeywords []string
	redFlags          []string
}

var violationRules = []violationRule{
	{
		tag:               TagSecurityBypass,
		principleKeywords: []string{"security", "secure"},
		redFlags:          []string{"disable security", "bypass authentication", "skip validation"},
	},
	{
		tag:               TagPrivacyViolation,
		principleKeywords: []string{"privacy", "personal data"},
		redFlags:          []string{"expose data", "share personal information", "log sensitive data"},
	},
	{
		tag:               TagQualityViolation,
		principleKeywords: []string{"quality", "testing"},
		redFlags:          []string{"skip tests", "disable validation", "ignore errors"},
	},
	{
		tag:               TagComplianceViolation,
		principleKeywords: []string{"compliance", "regulation"},
		redFlags:          []string{"ignore compliance", "bypass regulation", "skip audit"},
	},
}

// DetectViolations is a pure keyword scan. An empty result does not mean the
// action complies; it only means no explicit red flag matched.
func DetectViolations(actionText, principleText string) []ViolationTag {
	action := strings.ToLower(actionText)
	principle := strings.ToLower(principleText)

	var tags []ViolationTag
	for _, rule := range violationRules {
		if !containsAny(principle, rule.principleKeywords) {
			continue
		}
		if containsAny(action, rule.redFlags) {
			tags = append(tags, rule.tag)
		}
	}

	return tags
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
