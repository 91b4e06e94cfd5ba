package jobs

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"queued", StatusQueued, true},
		{" Processing ", StatusProcessing, true},
		{"COMPLETED_WITH_ERRORS", StatusCompletedWithErrors, true},
		{"", "", false},
		{"done", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.input)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusCompletedWithErrors, StatusFailed} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
	for _, status := range []Status{StatusQueued, StatusProcessing} {
		if status.IsTerminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusQueued, StatusProcessing},
		{StatusQueued, StatusFailed},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusCompletedWithErrors},
		{StatusProcessing, StatusFailed},
	}
	for _, edge := range allowed {
		if !CanTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be allowed", edge[0], edge[1])
		}
	}

	denied := [][2]Status{
		{StatusQueued, StatusCompleted},
		{StatusCompleted, StatusProcessing},
		{StatusFailed, StatusQueued},
		{StatusCompletedWithErrors, StatusFailed},
		{StatusProcessing, StatusQueued},
	}
	for _, edge := range denied {
		if CanTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be denied", edge[0], edge[1])
		}
	}
}
