package bus

// Topic names on the redis pub/sub bus.
const (
	TopicUpdates = "updates"
	TopicOnSeen  = "on_seen"
)

// Update tells mirror workers to refresh the messages of one mirror group
// from the authoritative content URL. Transient; never persisted.
type Update struct {
	ChannelID  string   `json:"channel_id"`
	MessageIDs []string `json:"message_ids"`
	URL        string   `json:"url"`
}

// MessageRef addresses a single chat message.
type MessageRef struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// OnSeen carries the deferred cleanup actions drained when a repository
// transitions into seen state. Emitted at most once per transition.
type OnSeen struct {
	Deletions []MessageRef `json:"deletions"`
	Dereacts  []MessageRef `json:"dereacts"`
}

// Empty reports whether the event carries no actions at all.
func (o OnSeen) Empty() bool {
	return len(o.Deletions) == 0 && len(o.Dereacts) == 0
}
