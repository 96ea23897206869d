package locate

import "github.com/silver-mush/gopennmush/pkg/gamedb"

// Kind tags a resolution outcome.
type Kind int

const (
	KindMatch Kind = iota
	KindNotFound
	KindAmbiguous
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindNotFound:
		return "not_found"
	case KindAmbiguous:
		return "ambiguous"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Canonical softcode-visible error strings.
const (
	ErrorPerm      = "#-1 PERMISSION DENIED"
	ErrorAmbiguous = "#-2 AMBIGUOUS MATCH"
	ErrorNoEval    = "#-1 NOT PERMITTED TO EVALUATE ON LOOKER"
	MsgNotVisible  = "I can't see that here"
)

// Result is the outcome of a Locate call. Object is non-nil only for
// KindMatch; Message carries the user-facing text for every other kind.
type Result struct {
	Kind    Kind
	Object  *gamedb.Object
	Message string
}

// IsMatch reports a successful resolution.
func (r Result) IsMatch() bool { return r.Kind == KindMatch }

func matched(obj *gamedb.Object) Result {
	return Result{Kind: KindMatch, Object: obj}
}

func notFound() Result {
	return Result{Kind: KindNotFound, Message: MsgNotVisible}
}

func ambiguous() Result {
	return Result{Kind: KindAmbiguous, Message: ErrorAmbiguous}
}

func permDenied(msg string) Result {
	return Result{Kind: KindPermissionDenied, Message: msg}
}
