package runtime

import (
	"strings"

	"github.com/wardenhq/warden/internal/bus"
)

// Proposer maps an inbound event to a proposed action name. The core
// never decides what an action should be; the host supplies this.
type Proposer interface {
	Propose(msg *bus.InboundMessage) (action string, ok bool)
}

// DirectiveProposer resolves the first word of a message against a
// configured directive table (keyword -> action name).
type DirectiveProposer struct {
	directives map[string]string
}

// NewDirectiveProposer builds a proposer from the config directive map.
func NewDirectiveProposer(directives map[string]string) *DirectiveProposer {
	normalized := make(map[string]string, len(directives))
	for keyword, action := range directives {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		action = strings.TrimSpace(action)
		if keyword == "" || action == "" {
			continue
		}
		normalized[keyword] = action
	}
	return &DirectiveProposer{directives: normalized}
}

// Propose returns the action for the message's leading keyword.
func (p *DirectiveProposer) Propose(msg *bus.InboundMessage) (string, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(msg.Content)))
	if len(fields) == 0 {
		return "", false
	}
	action, ok := p.directives[fields[0]]
	return action, ok
}
