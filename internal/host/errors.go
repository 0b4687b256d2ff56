package host

import "fmt"

// Error codes reported by hosts.
const (
	CodeInvalidArgument  = "InvalidArgument"
	CodeInvalidHandle    = "InvalidHandle"
	CodeItemNotFound     = "ItemNotFound"
	CodeNotSupported     = "NotSupported"
	CodeGeneralException = "GeneralException"
)

// Error is a host-reported commit failure. Index is the position of the
// offending operation in the batch, or -1 when the host cannot say.
type Error struct {
	Code    string
	Message string
	Index   int
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("host: %s at operation %d: %s", e.Code, e.Index, e.Message)
	}
	return fmt.Sprintf("host: %s: %s", e.Code, e.Message)
}

// Errorf builds an *Error for the operation at index.
func Errorf(code string, index int, format string, args ...any) *Error {
	return &Error{Code: code, Index: index, Message: fmt.Sprintf(format, args...)}
}
