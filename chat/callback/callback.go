// Package callback encodes the closed set of button payloads the engine
// attaches to inline keyboards. Decoding is total: anything outside the
// set comes back as a MalformedError, never a panic.
package callback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/whisperwall/whisperwall/reactions"
)

type Action interface {
	callbackAction()
}

type AcceptRules struct{}

type ToggleCategory struct {
	Label string
}

type ConfirmCategories struct{}

type CancelFlow struct{}

type Approve struct {
	ConfessionID string
}

type Reject struct {
	ConfessionID string
}

type ViewComments struct {
	ConfessionID string
	Page         int
}

type AddComment struct {
	ConfessionID string
}

type Reply struct {
	CommentID string
}

type React struct {
	CommentID string
	Kind      reactions.Kind
}

type DeleteComment struct {
	CommentID string
	Severity  string
}

func (AcceptRules) callbackAction()       {}
func (ToggleCategory) callbackAction()    {}
func (ConfirmCategories) callbackAction() {}
func (CancelFlow) callbackAction()        {}
func (Approve) callbackAction()           {}
func (Reject) callbackAction()            {}
func (ViewComments) callbackAction()      {}
func (AddComment) callbackAction()        {}
func (Reply) callbackAction()             {}
func (React) callbackAction()             {}
func (DeleteComment) callbackAction()     {}

const (
	tagAcceptRules       = "ok"
	tagToggleCategory    = "ct"
	tagConfirmCategories = "cd"
	tagCancelFlow        = "cl"
	tagApprove           = "ap"
	tagReject            = "rj"
	tagViewComments      = "vw"
	tagAddComment        = "ac"
	tagReply             = "rp"
	tagReact             = "rx"
	tagDeleteComment     = "dc"
)

const (
	SeverityMinor = "minor"
	SeverityMajor = "major"
)

type MalformedError struct {
	Data string
}

func (err MalformedError) Error() string {
	return fmt.Sprintf("malformed callback payload %q", err.Data)
}

// Encode serializes an action to the payload string placed on a button.
func Encode(action Action) string {
	switch a := action.(type) {
	case AcceptRules:
		return tagAcceptRules
	case ToggleCategory:
		return join(tagToggleCategory, a.Label)
	case ConfirmCategories:
		return tagConfirmCategories
	case CancelFlow:
		return tagCancelFlow
	case Approve:
		return join(tagApprove, a.ConfessionID)
	case Reject:
		return join(tagReject, a.ConfessionID)
	case ViewComments:
		return join(tagViewComments, a.ConfessionID, strconv.Itoa(a.Page))
	case AddComment:
		return join(tagAddComment, a.ConfessionID)
	case Reply:
		return join(tagReply, a.CommentID)
	case React:
		return join(tagReact, a.CommentID, string(a.Kind))
	case DeleteComment:
		return join(tagDeleteComment, a.CommentID, a.Severity)
	default:
		panic(fmt.Sprintf("unencodable callback action %T", action))
	}
}

// Decode parses a payload string back into its action.
func Decode(data string) (Action, error) {
	tag, rest, _ := strings.Cut(data, ":")

	switch tag {
	case tagAcceptRules:
		if rest != "" {
			return nil, MalformedError{Data: data}
		}

		return AcceptRules{}, nil
	case tagToggleCategory:
		if rest == "" {
			return nil, MalformedError{Data: data}
		}

		return ToggleCategory{Label: rest}, nil
	case tagConfirmCategories:
		if rest != "" {
			return nil, MalformedError{Data: data}
		}

		return ConfirmCategories{}, nil
	case tagCancelFlow:
		if rest != "" {
			return nil, MalformedError{Data: data}
		}

		return CancelFlow{}, nil
	case tagApprove:
		if rest == "" || strings.Contains(rest, ":") {
			return nil, MalformedError{Data: data}
		}

		return Approve{ConfessionID: rest}, nil
	case tagReject:
		if rest == "" || strings.Contains(rest, ":") {
			return nil, MalformedError{Data: data}
		}

		return Reject{ConfessionID: rest}, nil
	case tagViewComments:
		id, pageStr, ok := strings.Cut(rest, ":")
		if !ok || id == "" {
			return nil, MalformedError{Data: data}
		}

		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, MalformedError{Data: data}
		}

		return ViewComments{ConfessionID: id, Page: page}, nil
	case tagAddComment:
		if rest == "" || strings.Contains(rest, ":") {
			return nil, MalformedError{Data: data}
		}

		return AddComment{ConfessionID: rest}, nil
	case tagReply:
		if rest == "" || strings.Contains(rest, ":") {
			return nil, MalformedError{Data: data}
		}

		return Reply{CommentID: rest}, nil
	case tagReact:
		id, kindStr, ok := strings.Cut(rest, ":")
		if !ok || id == "" || !reactions.Kind(kindStr).IsValid() {
			return nil, MalformedError{Data: data}
		}

		return React{CommentID: id, Kind: reactions.Kind(kindStr)}, nil
	case tagDeleteComment:
		id, severity, ok := strings.Cut(rest, ":")
		if !ok || id == "" || (severity != SeverityMinor && severity != SeverityMajor) {
			return nil, MalformedError{Data: data}
		}

		return DeleteComment{CommentID: id, Severity: severity}, nil
	default:
		return nil, MalformedError{Data: data}
	}
}

func join(parts ...string) string {
	return strings.Join(parts, ":")
}
