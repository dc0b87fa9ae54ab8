package domain

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a user-facing message produced by a studio operation.
// The HTTP layer decides how to render it.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

func (n Notice) IsZero() bool {
	return n.Message == ""
}

func SuccessNotice(msg string) Notice { return Notice{Level: NoticeSuccess, Message: msg} }
func ErrorNotice(msg string) Notice   { return Notice{Level: NoticeError, Message: msg} }
func InfoNotice(msg string) Notice    { return Notice{Level: NoticeInfo, Message: msg} }

// Outcome is the result of a studio operation: the session after the transition
// and the notice for the user. Failed operations still return an Outcome so the
// page can be re-rendered alongside the error.
type Outcome struct {
	Session Session `json:"state"`
	Notice  Notice  `json:"notice"`
}
