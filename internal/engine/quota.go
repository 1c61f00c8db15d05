package engine

// eventQuota bounds how many events the Run loop coalesces before it
// forces a pass. Without it a steady stream of property changes (an
// animation, a dragged slider) would postpone evaluation indefinitely.
type eventQuota struct {
	max     int
	current int
}

func newEventQuota(max int) *eventQuota {
	return &eventQuota{max: max}
}

// Take counts one event and reports whether the budget is exhausted.
// A non-positive max never exhausts.
func (q *eventQuota) Take() bool {
	q.current++
	return q.max > 0 && q.current >= q.max
}

func (q *eventQuota) Reset() {
	q.current = 0
}

func (q *eventQuota) Current() int {
	return q.current
}
