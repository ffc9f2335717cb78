package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// replyCounters records what a handler sent back for the handler summary line.
type replyCounters struct {
	messages int
	keyboard bool
}

// countingContext counts successful outbound calls made through the context.
type countingContext struct {
	tele.Context
	n *replyCounters
}

func (c countingContext) track(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	c.n.messages++
	if hasKeyboard(opts) {
		c.n.keyboard = true
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware wraps the context so GetCounters can report how many
// messages the handler sent and whether any carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := c.Get(countersKey).(*replyCounters); ok {
			return next(c)
		}
		n := &replyCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the message count and keyboard flag for the update.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return n.messages, n.keyboard
}
