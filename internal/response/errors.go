package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied      ErrCode = "PERMISSION_DENIED"
	ErrParticipantAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrAdminAccessOnly       ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation       ErrCode = "VALIDATION_ERROR"
	ErrInvalidID        ErrCode = "INVALID_ID"
	ErrInvalidPayload   ErrCode = "INVALID_PAYLOAD"
	ErrInvalidModuleSet ErrCode = "INVALID_MODULE_SET"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrSessionNotOpen    ErrCode = "SESSION_NOT_OPEN"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrSessionFull       ErrCode = "SESSION_FULL"
	ErrNotRegistered     ErrCode = "NOT_REGISTERED"
	ErrIllegalTransition ErrCode = "ILLEGAL_TRANSITION"
	ErrInvalidJoinCode   ErrCode = "INVALID_JOIN_CODE"
	ErrJoinCodeTaken     ErrCode = "JOIN_CODE_TAKEN"
	ErrNotAdmitted       ErrCode = "NOT_ADMITTED"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptNotStarted ErrCode = "ATTEMPT_NOT_STARTED"
	ErrOutOfSequence     ErrCode = "MODULE_OUT_OF_SEQUENCE"
	ErrAttemptNotScored  ErrCode = "ATTEMPT_NOT_SCORABLE"
	ErrStaleAttempt      ErrCode = "STALE_ATTEMPT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal           ErrCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrParticipantAccessOnly:
		return "Sumber daya ini terbatas untuk peserta."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidModuleSet:
		return "Susunan modul tes tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrSessionNotOpen:
		return "Sesi belum dibuka."
	case ErrSessionClosed:
		return "Sesi sudah ditutup."
	case ErrSessionFull:
		return "Kuota peserta sesi sudah penuh."
	case ErrNotRegistered:
		return "Anda tidak terdaftar pada sesi ini. Silakan hubungi panitia."
	case ErrIllegalTransition:
		return "Perubahan status sesi tidak diperbolehkan."
	case ErrInvalidJoinCode:
		return "Kode sesi tidak ditemukan."
	case ErrJoinCodeTaken:
		return "Kode sesi sudah digunakan oleh sesi lain."
	case ErrNotAdmitted:
		return "Anda belum bergabung ke sesi ini."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAttemptNotStarted:
		return "Tes belum dimulai."
	case ErrOutOfSequence:
		return "Selesaikan modul sebelumnya terlebih dahulu."
	case ErrAttemptNotScored:
		return "Nilai hanya dapat diberikan untuk tes yang sudah selesai."
	case ErrStaleAttempt:
		return "Data tes berubah. Silakan muat ulang."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	case ErrServiceUnavailable:
		return "Layanan sedang tidak tersedia."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
