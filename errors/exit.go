package errors

// Exit statuses, following sysexits(3).
const (
	ExitOK          = 0
	ExitDataErr     = 65
	ExitUnavailable = 69
	ExitSoftware    = 70
	ExitIOErr       = 74
)

// ExitCode maps an error to the process exit status.
//
//	nil                                  -> 0
//	INVALID_CONFIGURATION, INVALID_INPUT -> 65 (EX_DATAERR)
//	NETWORK_ERROR, SERVICE_UNAVAILABLE,
//	UNAUTHORIZED                         -> 69 (EX_UNAVAILABLE)
//	EXECUTION_FAILED, IO_ERROR,
//	NOT_FOUND, TIMEOUT                   -> 74 (EX_IOERR)
//	anything else                        -> 70 (EX_SOFTWARE)
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch GetCode(err) {
	case CodeInvalidConfig, CodeInvalidInput:
		return ExitDataErr
	case CodeNetwork, CodeUnavailable, CodeUnauthorized:
		return ExitUnavailable
	case CodeExecutionFailed, CodeIO, CodeNotFound, CodeTimeout:
		return ExitIOErr
	default:
		return ExitSoftware
	}
}
