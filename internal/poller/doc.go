// Package poller runs the fetch/validate/notify cycle on a schedule.
//
// One goroutine owns all loop state (poll window, last sent status, last sent
// diagnostic). Only the schedule may be swapped from outside, via SetSchedule.
package poller
