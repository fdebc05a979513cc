package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "send_counters"

// sendCounters tracks what a handler sent while serving one update.
type sendCounters struct {
	messages int
	keyboard bool
}

func countersOf(c tele.Context) *sendCounters {
	if sc, ok := c.Get(countersKey).(*sendCounters); ok {
		return sc
	}
	sc := &sendCounters{}
	c.Set(countersKey, sc)
	return sc
}

func (sc *sendCounters) add(n int, kb bool) {
	sc.messages += n
	sc.keyboard = sc.keyboard || kb
}

func withKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		var markup *tele.ReplyMarkup
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil {
				markup = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			markup = v
		}
		if markup != nil {
			return true
		}
	}
	return false
}

// countingContext counts successful Send and Reply calls.
type countingContext struct {
	tele.Context
	sc *sendCounters
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.sc.add(1, withKeyboard(opts))
	}
	return err
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.sc.add(1, withKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware counts the messages a handler sends and whether
// any carried a keyboard. The handler summary log reads them back.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sc := &sendCounters{}
		c.Set(countersKey, sc)
		return next(countingContext{Context: c, sc: sc})
	}
}

// AddMessages counts n messages sent through the bot instead of c.
func AddMessages(c tele.Context, n int, kb bool) {
	countersOf(c).add(n, kb)
}

// GetCounters returns the message count and keyboard flag for the update.
func GetCounters(c tele.Context) (int, bool) {
	sc, _ := c.Get(countersKey).(*sendCounters)
	if sc == nil {
		return 0, false
	}
	return sc.messages, sc.keyboard
}
