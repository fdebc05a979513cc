package state

// Store holds one session of type S per chat.
type Store[S any] interface {
	// Get returns a copy of the chat's session.
	Get(chatID int64) (S, bool)
	// Update runs fn under the store lock. fn receives the current session
	// (zero value when absent) and whether it existed; returning false
	// removes the session, returning true stores it.
	Update(chatID int64, fn func(s *S, exists bool) (keep bool))
	// Delete removes the chat's session.
	Delete(chatID int64)
	// Len reports how many chats hold a session.
	Len() int
	// Range calls fn with a copy of every session until fn returns false.
	Range(fn func(chatID int64, s S) bool)
}
