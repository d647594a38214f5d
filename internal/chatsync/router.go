package chatsync

import (
	"net/url"
	"strings"
)

// Fragment keys.
const (
	ParamChat   = "c"
	ParamSearch = "s"
)

// TransitionKind names a view change derived from a fragment change.
type TransitionKind int

const (
	SelectChat TransitionKind = iota + 1
	DeselectChat
	RunSearch
	ClearSearch
)

func (k TransitionKind) String() string {
	switch k {
	case SelectChat:
		return "select_chat"
	case DeselectChat:
		return "deselect_chat"
	case RunSearch:
		return "run_search"
	case ClearSearch:
		return "clear_search"
	default:
		return "unknown"
	}
}

// Transition is one view change. Chat is set for SelectChat, Query for RunSearch.
type Transition struct {
	Kind  TransitionKind
	Chat  ChatKey
	Query string
}

// RouteState is the application state encoded in a fragment.
type RouteState struct {
	Chat    ChatKey
	HasChat bool
	Search  string
}

// ParseFragment decodes a fragment such as "#c=5_2&s=bob". Unparseable input
// and invalid chat values read as absent.
func ParseFragment(fragment string) RouteState {
	values := parseValues(fragment)
	var st RouteState
	if key, ok := ParseChatKey(values.Get(ParamChat)); ok {
		st.Chat, st.HasChat = key, true
	}
	st.Search = values.Get(ParamSearch)
	return st
}

func parseValues(fragment string) url.Values {
	// ParseQuery keeps the pairs it could decode.
	values, _ := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	return values
}

// Route returns the transitions that take the view from prev to cur. It is a
// pure function: the same pair always yields the same list, and
// Route(x, x) is always empty. The search transition comes first.
func Route(prev, cur string) []Transition {
	a, b := ParseFragment(prev), ParseFragment(cur)
	var out []Transition
	if a.Search != b.Search {
		if b.Search == "" {
			out = append(out, Transition{Kind: ClearSearch})
		} else {
			out = append(out, Transition{Kind: RunSearch, Query: b.Search})
		}
	}
	if a.HasChat != b.HasChat || a.Chat != b.Chat {
		if b.HasChat {
			out = append(out, Transition{Kind: SelectChat, Chat: b.Chat})
		} else {
			out = append(out, Transition{Kind: DeselectChat})
		}
	}
	return out
}

// SetParam returns fragment with key set to value. An empty value removes the key.
func SetParam(fragment, key, value string) string {
	values := parseValues(fragment)
	if value == "" {
		values.Del(key)
	} else {
		values.Set(key, value)
	}
	return values.Encode()
}

// ChatParam is the fragment value addressing key.
func ChatParam(key ChatKey) string { return key.String() }

// Encode renders a route state as a fragment.
func (s RouteState) Encode() string {
	values := url.Values{}
	if s.HasChat {
		values.Set(ParamChat, ChatParam(s.Chat))
	}
	if s.Search != "" {
		values.Set(ParamSearch, s.Search)
	}
	return values.Encode()
}
