package core

// ConversationID derives the canonical id for the 1:1 thread between two
// users. The pair is sorted so both participants compute the same value
// regardless of who initiated the conversation.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
