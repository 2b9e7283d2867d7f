package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionTestsRead allows viewing the test module catalogue.
	PermissionTestsRead Permission = "tests:read"

	// PermissionTestsWrite allows registering test modules.
	PermissionTestsWrite Permission = "tests:write"

	// PermissionSessionsRead allows viewing sessions and their rosters.
	PermissionSessionsRead Permission = "sessions:read"

	// PermissionSessionsWrite allows scheduling sessions and registering participants.
	PermissionSessionsWrite Permission = "sessions:write"

	// PermissionSessionsClose allows cancelling or completing a session.
	PermissionSessionsClose Permission = "sessions:close"

	// PermissionScoresWrite allows submitting externally computed attempt scores.
	PermissionScoresWrite Permission = "scores:write"

	// PermissionReportsRead allows viewing session, participant and cohort reports.
	PermissionReportsRead Permission = "reports:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionTestsRead,
	PermissionTestsWrite,
	PermissionSessionsRead,
	PermissionSessionsWrite,
	PermissionSessionsClose,
	PermissionScoresWrite,
	PermissionReportsRead,
}
