package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectViolations_SecurityBypass(t *testing.T) {
	tags := DetectViolations(
		"We should skip validation and deploy directly",
		"All deployments must follow security review procedures",
	)

	assert.Equal(t, []ViolationTag{TagSecurityBypass}, tags)
}

func TestDetectViolations_RequiresPrincipleKeyword(t *testing.T) {
	// Red flag present in the action, but the principle never mentions the
	// rule family, so the rule does not apply.
	tags := DetectViolations(
		"Bypass authentication for internal tooling",
		"Documentation must be kept up to date",
	)

	assert.Empty(t, tags)
}

func TestDetectViolations_CaseInsensitive(t *testing.T) {
	tags := DetectViolations(
		"DISABLE SECURITY checks before the demo",
		"Maintain SECURITY best practices at all times",
	)

	assert.Equal(t, []ViolationTag{TagSecurityBypass}, tags)
}

func TestDetectViolations_MultipleFamilies(t *testing.T) {
	tags := DetectViolations(
		"Skip tests and log sensitive data for debugging",
		"Respect user privacy and maintain code quality through testing",
	)

	assert.Equal(t, []ViolationTag{TagPrivacyViolation, TagQualityViolation}, tags)
}

func TestDetectViolations_Privacy(t *testing.T) {
	tags := DetectViolations(
		"Share personal information with the analytics vendor",
		"Personal data must never leave the platform",
	)

	assert.Equal(t, []ViolationTag{TagPrivacyViolation}, tags)
}

func TestDetectViolations_Compliance(t *testing.T) {
	tags := DetectViolations(
		"Skip audit for the quarterly release",
		"All releases are subject to compliance checks",
	)

	assert.Equal(t, []ViolationTag{TagComplianceViolation}, tags)
}

func TestDetectViolations_LiteralMatchOnly(t *testing.T) {
	// "circumvent the login" is a near-synonym of a red flag but not a
	// literal match.
	tags := DetectViolations(
		"Circumvent the login for the load test",
		"Security controls are mandatory",
	)

	assert.Empty(t, tags)
}

func TestDetectViolations_CleanAction(t *testing.T) {
	tags := DetectViolations(
		"Add unit tests for the payment module",
		"Maintain code quality through comprehensive testing",
	)

	assert.Empty(t, tags)
}
