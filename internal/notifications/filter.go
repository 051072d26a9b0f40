package notifications

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event types carried on EventsChannel.
const (
	EventPostCreated      = "post_created"
	EventCommentCreated   = "comment_created"
	EventAutoReplyCreated = "auto_reply_created"
)

var knownEvents = map[string]bool{
	EventPostCreated:      true,
	EventCommentCreated:   true,
	EventAutoReplyCreated: true,
}

// Filter narrows the events a client receives. The zero value receives
// everything.
type Filter struct {
	Types  map[string]bool
	PostID uint
}

// ParseFilter reads the ws query parameters: a comma-separated list of event
// types and an optional post ID. Empty values mean no restriction.
func ParseFilter(types, postID string) (Filter, error) {
	var f Filter
	for _, t := range strings.Split(types, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !knownEvents[t] {
			return Filter{}, fmt.Errorf("unknown event type %q", t)
		}
		if f.Types == nil {
			f.Types = make(map[string]bool)
		}
		f.Types[t] = true
	}
	if postID = strings.TrimSpace(postID); postID != "" {
		id, err := strconv.ParseUint(postID, 10, 32)
		if err != nil || id == 0 {
			return Filter{}, fmt.Errorf("invalid post_id %q", postID)
		}
		f.PostID = uint(id)
	}
	return f, nil
}

func (f Filter) all() bool {
	return len(f.Types) == 0 && f.PostID == 0
}

// envelope is the part of an Event the hub routes on.
type envelope struct {
	Type    string `json:"type"`
	Payload struct {
		ID     uint `json:"id"`
		PostID uint `json:"post_id"`
	} `json:"payload"`
}

func decodeEnvelope(message string) *envelope {
	var e envelope
	if err := json.Unmarshal([]byte(message), &e); err != nil || e.Type == "" {
		return nil
	}
	return &e
}

// postID is the post an event belongs to.
func (e *envelope) postID() uint {
	if e.Type == EventPostCreated {
		return e.Payload.ID
	}
	return e.Payload.PostID
}

// matches reports whether f lets e through. Undecodable messages (nil) only
// reach unfiltered clients.
func (f Filter) matches(e *envelope) bool {
	if f.all() {
		return true
	}
	if e == nil {
		return false
	}
	if len(f.Types) > 0 && !f.Types[e.Type] {
		return false
	}
	return f.PostID == 0 || e.postID() == f.PostID
}
