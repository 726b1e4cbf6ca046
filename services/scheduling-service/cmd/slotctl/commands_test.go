package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/recommend"
)

func writeAppointments(t *testing.T, appts []model.Appointment) string {
	t.Helper()
	raw, err := json.Marshal(appts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "appointments.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRecommendCommandJSON(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	path := writeAppointments(t, []model.Appointment{{
		ID: 1, Title: "Standup", StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour), Status: model.StatusScheduled,
	}})

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"recommend", "-f", path, "--date", "2025-03-10", "--seed", "3", "-o", "json"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	res, err := recommend.Unmarshal([]byte(strings.TrimSpace(out.String())))
	if err != nil {
		t.Fatalf("output is not wire json: %v\n%s", err, out.String())
	}
	if len(res.RecommendedSlots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(res.RecommendedSlots))
	}
	for _, s := range res.RecommendedSlots {
		if s.StartTime.Before(day.Add(10*time.Hour)) && s.EndTime.After(day.Add(9*time.Hour)) {
			t.Fatalf("slot %v overlaps the standup", s.StartTime)
		}
	}
}

func TestRecommendCommandRejectsBadHours(t *testing.T) {
	path := writeAppointments(t, nil)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"recommend", "-f", path, "--date", "2025-03-10", "--start", "18", "--end", "8", "-o", "table"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected an error for inverted business hours")
	}
}
