package core

import "gopperh7/irq"

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// ScheduleTimer adds a timer to the schedule
func ScheduleTimer(t *Timer) {
	state := irq.Default.Disable()
	defer irq.Default.Restore(state)

	insertTimer(t)
}

// RemoveTimer takes a timer off the schedule. It is a no-op if the timer is
// not pending.
func RemoveTimer(t *Timer) {
	state := irq.Default.Disable()
	defer irq.Default.Restore(state)

	removeTimer(t)
}

// insertTimer inserts a timer in sorted order by WakeTime. Timers due at the
// same tick run in the order they were added.
func insertTimer(t *Timer) {
	if timerList == nil || TimerIsBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !TimerIsBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func removeTimer(t *Timer) {
	link := &timerList
	for *link != nil {
		if *link == t {
			*link = t.Next
			t.Next = nil
			return
		}
		link = &(*link).Next
	}
}

// resetTimers drops every pending timer.
func resetTimers() {
	state := irq.Default.Disable()
	defer irq.Default.Restore(state)

	for timerList != nil {
		t := timerList
		timerList = t.Next
		t.Next = nil
	}
}

// TimerPending reports whether t is on the schedule.
func TimerPending(t *Timer) bool {
	state := irq.Default.Disable()
	defer irq.Default.Restore(state)

	for cur := timerList; cur != nil; cur = cur.Next {
		if cur == t {
			return true
		}
	}
	return false
}

// TimerDispatch runs every timer due at currentTime. Handlers run with
// interrupts disabled.
func TimerDispatch() {
	state := irq.Default.Disable()
	defer irq.Default.Restore(state)

	for timerList != nil && !TimerIsBefore(currentTime, timerList.WakeTime) {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}
