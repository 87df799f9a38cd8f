package domain

// Response is an outgoing chat message produced by the Telegram handler.
type Response struct {
	ChatID           int64
	ReplyToMessageID int
	Text             string
	Transcript       string
	Audio            *Speech
	Err              error
}
