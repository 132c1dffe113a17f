package controller

import "time"

// NoticeLifetime is how long a notice stays on screen.
const NoticeLifetime = 4 * time.Second

type NoticeKind string

const (
	KindSuccess NoticeKind = "success"
	KindError   NoticeKind = "error"
	KindWarning NoticeKind = "warning"
	KindInfo    NoticeKind = "info"
)

// Notice is a transient outcome message. Notices stack without limit and
// drop out once Expires has passed.
type Notice struct {
	ID      int
	Kind    NoticeKind
	Message string
	Expires time.Time
}

// Notify appends a notice and returns it so the caller can schedule a
// redraw at its expiry.
func (c *Controller) Notify(kind NoticeKind, msg string) Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextNotice++
	n := Notice{
		ID:      c.nextNotice,
		Kind:    kind,
		Message: msg,
		Expires: c.now().Add(NoticeLifetime),
	}
	c.notices = append(c.notices, n)
	return n
}

// Notices prunes expired notices and returns the live ones, oldest first.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	live := c.notices[:0]
	for _, n := range c.notices {
		if now.Before(n.Expires) {
			live = append(live, n)
		}
	}
	c.notices = live
	return append([]Notice{}, live...)
}

// Dismiss removes one notice early.
func (c *Controller) Dismiss(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return
		}
	}
}

// NextExpiry returns when the oldest live notice disappears. Notices that
// have already expired are skipped.
func (c *Controller) NextExpiry() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var next time.Time
	for _, n := range c.notices {
		if !now.Before(n.Expires) {
			continue
		}
		if next.IsZero() || n.Expires.Before(next) {
			next = n.Expires
		}
	}
	return next, !next.IsZero()
}
