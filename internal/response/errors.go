package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrInstructorOnly     ErrCode = "INSTRUCTOR_ACCESS_ONLY"
	ErrCannotActAs        ErrCode = "CANNOT_ACT_AS_USER"
	ErrVariantTokenDenied ErrCode = "VARIANT_TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidInput   ErrCode = "INVALID_INPUT"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Variants ──────────────────────────────────────────────────────
	ErrVariantGeneration       ErrCode = "VARIANT_GENERATION_FAILED"
	ErrInstanceQuestionClosed  ErrCode = "INSTANCE_QUESTION_CLOSED"
	ErrVariantFileNotFound     ErrCode = "VARIANT_FILE_NOT_FOUND"
	ErrIssueForwardingFailed   ErrCode = "ISSUE_FORWARDING_FAILED"
	ErrGradingJobStatusInvalid ErrCode = "GRADING_JOB_STATUS_INVALID"

	// ─── Sharing ───────────────────────────────────────────────────────
	ErrSharingDisabled      ErrCode = "SHARING_DISABLED"
	ErrSharingNameTaken     ErrCode = "SHARING_NAME_TAKEN"
	ErrSharingNameImmutable ErrCode = "SHARING_NAME_IMMUTABLE"
	ErrQuestionNotShared    ErrCode = "QUESTION_NOT_SHARED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid uid or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrInstructorOnly:
		return "This resource is restricted to instructors."
	case ErrCannotActAs:
		return "Only instructors may act as another user."
	case ErrVariantTokenDenied:
		return "Variant token is invalid or expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidInput:
		return "A question or instance question must be given."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Variants ──────────────────────────────────────────────────────
	case ErrVariantGeneration:
		return "Error creating question variant."
	case ErrInstanceQuestionClosed:
		return "This question is closed and cannot get a new variant."
	case ErrVariantFileNotFound:
		return "File not found for this variant."
	case ErrIssueForwardingFailed:
		return "Variant was created but its issues could not be recorded."
	case ErrGradingJobStatusInvalid:
		return "Unknown grading job status."

	// ─── Sharing ───────────────────────────────────────────────────────
	case ErrSharingDisabled:
		return "Question sharing is not enabled."
	case ErrSharingNameTaken:
		return "That sharing name is already in use."
	case ErrQuestionNotShared:
		return "This question is not shared with the course."
	case ErrSharingNameImmutable:
		return "The sharing name has already been chosen and cannot be changed."

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
