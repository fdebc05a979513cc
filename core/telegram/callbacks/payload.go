package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates numeric fields inside a callback payload ("3:1").
const Sep = ":"

// PayloadParts splits the callback payload into parts using the given separator.
func PayloadParts(c tele.Context, sep string) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(p, sep), nil
}

// PayloadInts parses a payload such as "3:1" into exactly n integers.
func PayloadInts(c tele.Context, n int) ([]int, error) {
	return ParseInts(CallbackPayload(c), n)
}

// ParseInts parses a Sep-joined list of exactly n integers.
func ParseInts(payload string, n int) ([]int, error) {
	if payload == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.Split(payload, Sep)
	if len(parts) != n {
		return nil, strconv.ErrSyntax
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// JoinInts encodes values as a payload understood by ParseInts.
func JoinInts(values ...int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, Sep)
}
