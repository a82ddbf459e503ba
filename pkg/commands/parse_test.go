package commands

import "testing"

func TestParseSlashLine_BareCommands(t *testing.T) {
	cases := map[string]Kind{
		"/begin":            KindBegin,
		"/config":           KindConfig,
		"/help":             KindHelp,
		"/stop":             KindStop,
		"/export_data":      KindExportData,
		"/disable_clockify": KindDisableClockify,
	}
	for line, want := range cases {
		req, err := ParseSlashLine("u1", line)
		if err != nil {
			t.Errorf("ParseSlashLine(%q): %v", line, err)
			continue
		}
		if req.Kind != want || req.UserID != "u1" {
			t.Errorf("ParseSlashLine(%q) = %+v", line, req)
		}
	}
}

func TestParseSlashLine_SetTime(t *testing.T) {
	req, err := ParseSlashLine("u1", "/set_time morning_check 7")
	if err != nil {
		t.Fatalf("ParseSlashLine: %v", err)
	}
	if req.Kind != KindSetTime || req.Args.CheckType != "morning_check" || req.Args.Hour != 7 {
		t.Errorf("req = %+v", req)
	}

	if _, err := ParseSlashLine("u1", "/set_time morning_check"); err == nil {
		t.Error("missing hour accepted")
	}
	if _, err := ParseSlashLine("u1", "/set_time morning_check seven"); err == nil {
		t.Error("non-numeric hour accepted")
	}
}

func TestParseSlashLine_SetWeeklyReview(t *testing.T) {
	req, err := ParseSlashLine("u1", "/set_weekly_review FRI 17")
	if err != nil {
		t.Fatalf("ParseSlashLine: %v", err)
	}
	if req.Kind != KindSetWeeklyReview || req.Args.Day != "FRI" || req.Args.Hour != 17 {
		t.Errorf("req = %+v", req)
	}
}

func TestParseSlashLine_SetCheckProbability(t *testing.T) {
	req, err := ParseSlashLine("u1", "/set_check_probability 0.4")
	if err != nil {
		t.Fatalf("ParseSlashLine: %v", err)
	}
	if req.Kind != KindSetCheckProbability || req.Args.Probability != 0.4 {
		t.Errorf("req = %+v", req)
	}
	if _, err := ParseSlashLine("u1", "/set_check_probability often"); err == nil {
		t.Error("non-numeric probability accepted")
	}
}

func TestParseSlashLine_Rejections(t *testing.T) {
	for _, line := range []string{"", "hello", "/frobnicate", "/set_timezone", "/trigger_check"} {
		if _, err := ParseSlashLine("u1", line); err == nil {
			t.Errorf("ParseSlashLine(%q) accepted", line)
		}
	}
}

func TestParseSlashLine_TriggerCheck(t *testing.T) {
	req, err := ParseSlashLine("u1", "/trigger_check weekly")
	if err != nil {
		t.Fatalf("ParseSlashLine: %v", err)
	}
	if req.Kind != KindTriggerCheck || req.Args.TriggerKind != "weekly" {
		t.Errorf("req = %+v", req)
	}
}
