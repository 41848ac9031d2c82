package server

// Aliases for unexported pieces exercised directly by tests.
var (
	ObjectsToDelete        = objectsToDelete
	ParseRetentionPolicies = parseRetentionPolicies
	ErrInvalidConfig       = errInvalidConfig
	IsThrottleError        = isThrottleError
	GetEnvOrDefault        = getEnvOrDefault
	GetEnvIntOrDefault     = getEnvIntOrDefault
	GetEnvFloatOrDefault   = getEnvFloatOrDefault
	ReadSecretFile         = readSecretFile
)

const (
	DefaultDaysToKeep       = defaultDaysToKeep
	DefaultMinBackupsToKeep = defaultMinBackupsToKeep
)
