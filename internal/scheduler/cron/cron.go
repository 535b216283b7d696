// Package cron computes schedule fire times. It holds no store or
// queue dependency — just the pure anchor/offset arithmetic that the
// queue package's re-arm logic and the HTTP preview handler both use.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the six-field form (seconds first), matching the
// schedule strings this system stores — one field more than
// cron.ParseStandard's five-field minute-first form.
var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate parses the expression and confirms it has at least one
// future occurrence, so a schedule can never be created or edited into
// one that would never fire.
func Validate(expr string) error {
	sched, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if sched.Next(time.Now().UTC()).IsZero() {
		return fmt.Errorf("cron expression has no future occurrence")
	}
	return nil
}

// NextAfter computes the next fire time strictly after now, for a
// schedule whose expression is evaluated offsetMinutes west of UTC
// (i.e. the same "local time" anchor the original scheduler used).
//
// The anchor is rewound by the offset and nudged one second forward
// before searching, then the result is pushed back by the offset — so
// a cron expression like "0 30 9 * * *" means 09:30 in the schedule's
// own timezone, not 09:30 UTC, without robfig/cron ever seeing a
// location other than UTC.
func NextAfter(expr string, offsetMinutes int, now time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}

	offset := time.Duration(offsetMinutes) * time.Minute
	anchor := now.UTC().Add(-offset).Add(time.Second)
	next := sched.Next(anchor)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression has no future occurrence")
	}
	return next.Add(offset), nil
}

// Preview returns up to n future fire times starting from now, in the
// same offset-adjusted frame as NextAfter — used by the schedule
// preview endpoint so a caller can sanity-check an expression before
// saving it.
func Preview(expr string, offsetMinutes int, now time.Time, n int) ([]time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	offset := time.Duration(offsetMinutes) * time.Minute
	anchor := now.UTC().Add(-offset).Add(time.Second)

	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		next := sched.Next(anchor)
		if next.IsZero() {
			break
		}
		out = append(out, next.Add(offset))
		anchor = next
	}
	return out, nil
}
