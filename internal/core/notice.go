package core

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeDevice
	NoticeConnection
	NoticeSend
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Notice is a user-visible, non-fatal message.
type Notice struct {
	Kind        NoticeKind
	Severity    Severity
	Title       string
	Description string
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
