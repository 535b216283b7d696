package cron_test

import (
	"testing"
	"time"

	"github.com/windmillcore/jobcore/internal/scheduler/cron"
)

var fixedNow = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

func TestValidate_ValidExpression_NoError(t *testing.T) {
	if err := cron.Validate("0 * * * * *"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_MalformedExpression_ReturnsError(t *testing.T) {
	if err := cron.Validate("not a cron expression"); err == nil {
		t.Error("expected an error for a malformed expression")
	}
}

func TestNextAfter_IsStrictlyAfterNow(t *testing.T) {
	next, err := cron.NextAfter("0 * * * * *", 0, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.After(fixedNow) {
		t.Errorf("next fire time %v is not after %v", next, fixedNow)
	}
}

func TestNextAfter_EveryMinute_FiresAtNextMinuteBoundary(t *testing.T) {
	next, err := cron.NextAfter("0 * * * * *", 0, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := fixedNow.Add(time.Minute)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextAfter_OffsetShiftsTheEvaluationFrame(t *testing.T) {
	// "0 30 9 * * *" fires at 09:30 in the schedule's own local frame;
	// a positive offset (minutes west of UTC) should shift the computed
	// UTC fire time later by that same amount.
	withoutOffset, err := cron.NextAfter("0 30 9 * * *", 0, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withOffset, err := cron.NextAfter("0 30 9 * * *", 60, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !withOffset.Equal(withoutOffset.Add(time.Hour)) {
		t.Errorf("offset fire time %v, want %v", withOffset, withoutOffset.Add(time.Hour))
	}
}

func TestPreview_ReturnsRequestedCountInMonotonicOrder(t *testing.T) {
	occurrences, err := cron.Preview("0 * * * * *", 0, fixedNow, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 5 {
		t.Fatalf("len = %d, want 5", len(occurrences))
	}
	for i := 1; i < len(occurrences); i++ {
		if !occurrences[i].After(occurrences[i-1]) {
			t.Errorf("occurrence %d (%v) is not after occurrence %d (%v)", i, occurrences[i], i-1, occurrences[i-1])
		}
	}
}

func TestPreview_MalformedExpression_ReturnsError(t *testing.T) {
	_, err := cron.Preview("garbage", 0, fixedNow, 5)
	if err == nil {
		t.Error("expected an error for a malformed expression")
	}
}

func TestNextAfter_MalformedExpression_ReturnsError(t *testing.T) {
	if _, err := cron.NextAfter("garbage", 0, fixedNow); err == nil {
		t.Error("expected an error for a malformed expression")
	}
}
