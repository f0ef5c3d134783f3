package ai

import "github.com/cloudwego/eino/schema"

// Conversation is the opaque handle to one backend conversation. It owns
// the bounded replay window sent to the model on every turn; the session
// holding it is responsible for serializing access.
type Conversation struct {
	history  []*schema.Message
	released bool
}

// window returns the messages to replay on the next turn.
func (c *Conversation) window() []*schema.Message {
	if c == nil || c.released {
		return nil
	}
	return c.history
}

// record appends one user/assistant exchange, trimming the window to the
// given number of message pairs.
func (c *Conversation) record(userText, assistantText string, pairLimit int) {
	if c == nil || c.released {
		return
	}

	c.history = append(c.history,
		schema.UserMessage(userText),
		schema.AssistantMessage(assistantText, nil),
	)

	if limit := pairLimit * 2; limit > 0 && len(c.history) > limit {
		c.history = c.history[len(c.history)-limit:]
	}
}
