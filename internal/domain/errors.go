package domain

import "fmt"

// ValidationError reports a malformed bank entry. It is fatal: the
// process must not start serving with a bank that fails validation.
type ValidationError struct {
	Prompt string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Prompt == "" {
		return "invalid question bank: " + e.Reason
	}
	return fmt.Sprintf("invalid question %q: %s", e.Prompt, e.Reason)
}

// ConfigError reports quiz parameters that cannot work with the loaded
// bank (e.g. sample size larger than the bank). Fatal at startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid quiz configuration: " + e.Reason
}

// InvariantError reports an inconsistency between a session and the
// bank that should be impossible if the session invariants hold. It is
// never swallowed: the driver logs it and aborts that conversation.
type InvariantError struct {
	UserID int64
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("session invariant violated for user %d: %s", e.UserID, e.Detail)
}
