package proxy

// Location is where a message was sent: a text channel, or a thread inside
// one. ChannelID always names the text channel; ThreadID is empty outside
// threads. CategoryID is the text channel's category, if any.
type Location struct {
	ChannelID  string
	ThreadID   string
	CategoryID string
}

// InChannel returns the location of a plain text channel.
func InChannel(channelID, categoryID string) Location {
	return Location{ChannelID: channelID, CategoryID: categoryID}
}

// InThread returns the location of a thread whose parent is parentID.
func InThread(threadID, parentID, categoryID string) Location {
	return Location{ChannelID: parentID, ThreadID: threadID, CategoryID: categoryID}
}

// IsThread reports whether the location is a thread.
func (l Location) IsThread() bool { return l.ThreadID != "" }

// TrueChannel is the channel used for policy, cooldowns and webhooks.
func (l Location) TrueChannel() string { return l.ChannelID }

// PostChannel is the channel or thread messages actually appear in.
func (l Location) PostChannel() string {
	if l.IsThread() {
		return l.ThreadID
	}
	return l.ChannelID
}
