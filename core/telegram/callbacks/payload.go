package callbacks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a decoded button press.
type Kind string

const (
	KindNewPost Kind = "new_post"
	KindGroup   Kind = "group"
	KindTopic   Kind = "topic"
)

var (
	// ErrMalformed reports a known payload whose id part is not an integer.
	ErrMalformed = errors.New("callbacks: malformed payload")
	// ErrUnknown reports a payload that no Kind claims.
	ErrUnknown = errors.New("callbacks: unknown payload")
)

// Action is a button payload decoded once at the routing boundary.
// ID is meaningful for KindGroup (group id) and KindTopic (thread id).
type Action struct {
	Kind Kind
	ID   int64
}

// NewPost returns the entry-menu action.
func NewPost() Action { return Action{Kind: KindNewPost} }

// Group returns the action selecting the group with the given id.
func Group(id int64) Action { return Action{Kind: KindGroup, ID: id} }

// Topic returns the action selecting the topic with the given thread id.
func Topic(threadID int64) Action { return Action{Kind: KindTopic, ID: threadID} }

// Payload encodes the action into callback data: new_post, group_<id>, topic_<id>.
func (a Action) Payload() string {
	switch a.Kind {
	case KindGroup, KindTopic:
		return string(a.Kind) + "_" + strconv.FormatInt(a.ID, 10)
	default:
		return string(a.Kind)
	}
}

// Decode parses raw callback data. The prefix is split off at the first '_'
// and the remainder must be an integer id.
func Decode(data string) (Action, error) {
	data = strings.TrimSpace(data)
	if data == string(KindNewPost) {
		return NewPost(), nil
	}
	prefix, rest, ok := strings.Cut(data, "_")
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknown, data)
	}
	kind := Kind(prefix)
	switch kind {
	case KindGroup, KindTopic:
	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknown, data)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return Action{Kind: kind}, fmt.Errorf("%w: %q: %v", ErrMalformed, data, err)
	}
	return Action{Kind: kind, ID: id}, nil
}
