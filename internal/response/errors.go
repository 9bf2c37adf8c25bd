package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrOTPInvalid         ErrCode = "OTP_INVALID"
	ErrOTPExpired         ErrCode = "OTP_EXPIRED"
	ErrOTPLocked          ErrCode = "OTP_ATTEMPTS_EXCEEDED"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Test sessions ─────────────────────────────────────────────────
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionSubmitted   ErrCode = "SESSION_SUBMITTED"
	ErrQuestionOutOfRange ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrOptionOutOfRange   ErrCode = "OPTION_OUT_OF_RANGE"
	ErrPauseNotSupported  ErrCode = "PAUSE_NOT_SUPPORTED"
	ErrInvalidSessionMode ErrCode = "INVALID_SESSION_MODE"
	ErrTooManySessions    ErrCode = "TOO_MANY_SESSIONS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrOTPInvalid:
		return "The code you entered is incorrect."
	case ErrOTPExpired:
		return "The code has expired. Request a new one."
	case ErrOTPLocked:
		return "Too many wrong attempts. Request a new code."
	case ErrSessionInvalidated:
		return "You signed in on another device. Please sign in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Test sessions ─────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Test session not found or already closed."
	case ErrSessionSubmitted:
		return "This test has already been submitted."
	case ErrQuestionOutOfRange:
		return "Question index is out of range."
	case ErrOptionOutOfRange:
		return "Option index is out of range."
	case ErrPauseNotSupported:
		return "Only timed mock tests can be paused."
	case ErrInvalidSessionMode:
		return "Unknown test mode."
	case ErrTooManySessions:
		return "Too many open tests. Finish or leave one first."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
