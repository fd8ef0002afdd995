package dialog

import (
	"errors"
	"fmt"
	"strings"
)

// Callback token domains. Tokens travel inside inline keyboard buttons as
// "domain:action" or "domain:action:payload" and are parsed once at the
// boundary, never inside handlers.
const (
	DomainQuiz   = "quiz"
	DomainDebunk = "debunk"
	DomainStore  = "store"
	DomainLang   = "lang"
)

// Callback actions.
const (
	ActionAnswer = "ans"
	ActionCancel = "cancel"
	ActionBuy    = "buy"
	ActionSet    = "set"
)

// ErrMalformedCallback is returned for tokens that do not parse.
var ErrMalformedCallback = errors.New("dialog: malformed callback token")

// Callback is a parsed inline-button token.
type Callback struct {
	Domain  string
	Action  string
	Payload string
}

// ParseCallback parses a raw callback token into its structured form.
func ParseCallback(data string) (Callback, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
	}

	cb := Callback{Domain: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		cb.Payload = parts[2]
	}
	return cb, nil
}

// Token builds the wire form of a callback.
func Token(domain, action, payload string) string {
	if payload == "" {
		return domain + ":" + action
	}
	return domain + ":" + action + ":" + payload
}
