package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave. Allow decides
// whether the sender may run admin handlers; a nil Allow rejects everyone.
type AdminOptions struct {
	Allow    func(c tele.Context) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allowed(c tele.Context) bool {
	if c.Sender() == nil || o.Allow == nil {
		return false
	}
	return o.Allow(c)
}

// AdminOnlyMiddleware ensures that only admin users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.allowed(c) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
