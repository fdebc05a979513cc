// Package state keeps per-chat conversation sessions for Telegram bots.
// It is domain-agnostic: the session type is a type parameter.
package state
