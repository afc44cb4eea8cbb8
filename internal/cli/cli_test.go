package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/timetable/internal/config"
	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/internal/export"
	"github.com/me/timetable/internal/server"
	"github.com/me/timetable/internal/store"
	"github.com/me/timetable/pkg/model"
)

// startTestServer starts a server with an in-memory SQLite store and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dir, err := directory.New([]model.InstructorProfile{
		{ID: "wilson", Name: "Ms Wilson", Specializations: []string{"Math"}},
		{ID: "patel", Name: "Mr Patel", Specializations: []string{"Science"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := server.New(config.DefaultServerConfig(), st, model.DefaultCalendar(), srvLogger, server.WithDirectory(dir))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// writeGrid writes a one-slot grid file with instructor at Monday/period.
func writeGrid(t *testing.T, classGroup, instructor string, period int) string {
	t.Helper()
	g := model.NewGrid(classGroup, "2026-T1")
	g.Slots[model.SlotKey{Day: model.Monday, Period: period}] = model.Assignment{Subject: "Math", InstructorID: instructor}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), classGroup+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestPublishAndList(t *testing.T) {
	url := startTestServer(t)
	a := writeGrid(t, "Grade5A", "wilson", 1)
	b := writeGrid(t, "Grade5B", "wilson", 2)

	output, err := runCLI(t, "--server", url, "--term", "2026-T1", "publish", a, b)
	if err != nil {
		t.Fatalf("publish error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "2 succeeded, 0 failed") {
		t.Errorf("expected summary in output, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "--term", "2026-T1", "grids", "list", "--status", "published")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(output, "CLASS GROUP") || !strings.Contains(output, "Grade5B") {
		t.Errorf("expected table with Grade5B, got: %s", output)
	}
}

func TestPublish_ConflictReported(t *testing.T) {
	url := startTestServer(t)
	a := writeGrid(t, "Grade5A", "wilson", 1)
	b := writeGrid(t, "Grade5B", "wilson", 1)

	output, err := runCLI(t, "--server", url, "--term", "2026-T1", "publish", a, b)
	if err == nil {
		t.Fatal("expected error for conflicting batch")
	}
	if !strings.Contains(output, "blocked") || !strings.Contains(output, "Ms Wilson") {
		t.Errorf("expected blocked outcomes naming the instructor, got: %s", output)
	}
}

func TestShowAndUnpublish(t *testing.T) {
	url := startTestServer(t)
	a := writeGrid(t, "Grade5A", "wilson", 1)
	if _, err := runCLI(t, "--server", url, "--term", "2026-T1", "publish", a); err != nil {
		t.Fatal(err)
	}

	output, err := runCLI(t, "--server", url, "--term", "2026-T1", "grids", "show", "Grade5A")
	if err != nil {
		t.Fatalf("show error: %v", err)
	}
	if !strings.Contains(output, "Math (wilson)") || !strings.Contains(output, "Lunch") {
		t.Errorf("expected rendered grid, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "--term", "2026-T1", "grids", "unpublish", "Grade5A")
	if err != nil {
		t.Fatalf("unpublish error: %v", err)
	}
	if !strings.Contains(output, "Grade5A: draft") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestCheck(t *testing.T) {
	url := startTestServer(t)
	a := writeGrid(t, "Grade6C", "wilson", 1)
	if _, err := runCLI(t, "--server", url, "--term", "2026-T1", "publish", a); err != nil {
		t.Fatal(err)
	}

	output, err := runCLI(t, "--server", url, "--term", "2026-T1", "check", "Grade5A", "mon", "1", "wilson")
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !strings.Contains(output, "CONFLICT (authoritative)") || !strings.Contains(output, "Grade6C") {
		t.Errorf("expected authoritative conflict, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "--term", "2026-T1", "check", "Grade5A", "Tuesday", "1", "wilson")
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !strings.Contains(output, "is free") {
		t.Errorf("expected free slot, got: %s", output)
	}
}

func TestGenerateAndExport(t *testing.T) {
	url := startTestServer(t)
	outDir := t.TempDir()

	output, err := runCLI(t, "--server", url, "--term", "2026-T1",
		"generate", "Grade5A", "--subjects", "Math,Science", "--days", "Mon,Tue", "--periods", "2", "--save", "-o", outDir)
	if err != nil {
		t.Fatalf("generate error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "Grade5A: 4 slots, hard constraints ok") {
		t.Errorf("unexpected output: %s", output)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Grade5A.json")); err != nil {
		t.Errorf("grid file not written: %v", err)
	}

	xlsx := filepath.Join(t.TempDir(), "out.xlsx")
	if _, err := runCLI(t, "--server", url, "--term", "2026-T1", "export", "Grade5A", "-o", xlsx); err != nil {
		t.Fatalf("export error: %v", err)
	}
	data, err := os.ReadFile(xlsx)
	if err != nil {
		t.Fatal(err)
	}
	grids, err := export.ReadXLSX(data, "2026-T1", model.DefaultCalendar(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(grids) != 1 || len(grids[0].Slots) != 4 {
		t.Errorf("exported grids = %+v", grids)
	}
}

func TestImport(t *testing.T) {
	url := startTestServer(t)
	g := model.NewGrid("Grade5A", "2026-T1")
	g.Slots[model.SlotKey{Day: model.Monday, Period: 1}] = model.Assignment{Subject: "Math", InstructorID: "wilson"}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, []*model.Grid{g}, model.DefaultCalendar(), nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "in.xlsx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	output, err := runCLI(t, "--server", url, "--term", "2026-T1", "import", path, "--publish")
	if err != nil {
		t.Fatalf("import error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "1 succeeded, 0 failed") {
		t.Errorf("expected summary in output, got: %s", output)
	}

	output, err = runCLI(t, "--server", url, "--term", "2026-T1", "grids", "show", "Grade5A")
	if err != nil {
		t.Fatalf("show error: %v", err)
	}
	if !strings.Contains(output, "Math (wilson)") {
		t.Errorf("expected imported slot, got: %s", output)
	}
}

func TestImport_MissingFile(t *testing.T) {
	url := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "--term", "2026-T1", "import", "/nonexistent/in.xlsx"); err == nil {
		t.Error("expected error for missing workbook")
	}
}

func TestTermRequired(t *testing.T) {
	url := startTestServer(t)
	t.Setenv("TIMETABLE_TERM", "")
	_, err := runCLI(t, "--server", url, "grids", "list")
	if err == nil || !strings.Contains(err.Error(), "no term selected") {
		t.Fatalf("err = %v, want missing term", err)
	}
}

func TestSave_MissingFile(t *testing.T) {
	url := startTestServer(t)
	_, err := runCLI(t, "--server", url, "--term", "2026-T1", "save", "nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
