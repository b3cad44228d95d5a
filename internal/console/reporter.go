package console

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/rs/zerolog"
)

// Action names what the user attempted, for messages
type Action string

const (
	ActionUpdate Action = "update"
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
)

func (a Action) past() string {
	switch a {
	case ActionAdd:
		return "added"
	case ActionDelete:
		return "deleted"
	default:
		return string(a) + "d"
	}
}

// ExpiryHandler reacts to an expired session, e.g. by sending the user to login
type ExpiryHandler interface {
	SessionExpired()
}

// ExpiryFunc adapts a function to ExpiryHandler
type ExpiryFunc func()

func (f ExpiryFunc) SessionExpired() { f() }

// Reporter turns outcomes into notifications
type Reporter struct {
	notifier *Notifier
	expiry   ExpiryHandler
	log      zerolog.Logger
}

func NewReporter(notifier *Notifier, expiry ExpiryHandler, log zerolog.Logger) *Reporter {
	return &Reporter{notifier: notifier, expiry: expiry, log: log}
}

// Report shows exactly one notification for the outcome and, when a
// session expiry caused any failure, calls the expiry handler once.
func (r *Reporter) Report(sch domain.Schema, action Action, out Outcome) Notification {
	msg := r.message(sch, action, out)
	r.notifier.Show(msg)

	ev := r.log.Info()
	if msg.IsError {
		ev = r.log.Warn()
	}
	ev.Str("kind", string(sch.Kind)).Str("action", string(action)).Stringer("status", out.Status).Msg(msg.Message)

	if out.SessionExpired() && r.expiry != nil {
		r.expiry.SessionExpired()
	}
	return msg
}

func (r *Reporter) message(sch domain.Schema, action Action, out Outcome) Notification {
	switch out.Status {
	case NoChange:
		return Notification{Message: "No changes detected."}
	case Success:
		return Notification{Message: fmt.Sprintf("%s %s successfully.", capitalize(sch.Singular), action.past())}
	case Invalid:
		if out.Rejected == nil {
			return Notification{Message: fmt.Sprintf("Cannot %s %s.", action, sch.Singular), IsError: true}
		}
		return Notification{
			Message: fmt.Sprintf("Cannot %s %s: %s.", action, sch.Singular, out.Rejected.Error()),
			IsError: true,
		}
	}

	prefix := fmt.Sprintf("Failed to %s %s", action, sch.Singular)
	switch {
	case out.SessionExpired():
		return Notification{Message: prefix + ": session expired, please log in again.", IsError: true}
	case out.Attempted > 1:
		return Notification{
			Message: fmt.Sprintf("%s: %d of %d changes failed.", prefix, len(out.Errors), out.Attempted),
			IsError: true,
		}
	case len(out.Errors) == 1:
		return Notification{Message: fmt.Sprintf("%s: %v.", prefix, out.Errors[0].Err), IsError: true}
	default:
		return Notification{Message: prefix + ".", IsError: true}
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
