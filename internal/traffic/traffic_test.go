package traffic

import (
	"testing"
	"time"
)

func TestTracker_CountsWithinWindow(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenied()

	if got := tr.RequestCount(time.Minute); got != 4 {
		t.Errorf("RequestCount() = %d, want 4", got)
	}
	if got := tr.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
	errs, total := tr.ErrorRate(time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errs, total)
	}
}

func TestTracker_ZeroWindowExcludesPast(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	time.Sleep(5 * time.Millisecond)
	if got := tr.RequestCount(time.Millisecond); got != 0 {
		t.Errorf("RequestCount(1ms) = %d, want 0", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordDenied()
	tr.Reset()
	if got := tr.RequestCount(time.Minute); got != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", got)
	}
}
