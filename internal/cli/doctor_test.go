package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func resetDoctorFlags(t *testing.T) {
	t.Helper()
	old := doctorOnline
	t.Cleanup(func() { doctorOnline = old })
	doctorOnline = false
}

func TestDoctorAllChecksPass(t *testing.T) {
	platform := newFakeWeChat(t)
	ws := newTestWorkspace(t, platform.URL, true)
	resetDoctorFlags(t)
	if err := os.MkdirAll(ws.source, 0o755); err != nil {
		t.Fatal(err)
	}

	doctorOnline = true
	out, err := captureStdout(t, func() error {
		return doctorAction(testCommand(), nil)
	})
	if err != nil {
		t.Fatalf("doctor: %v\noutput:\n%s", err, out)
	}
	requireContains(t, out, "[ OK ] config directory")
	requireContains(t, out, "[ OK ] credentials from $APP_ID and $APP_SECRET")
	requireContains(t, out, "[ OK ] public dir")
	requireContains(t, out, "[INFO] feed")
	requireContains(t, out, "[ OK ] database")
	requireContains(t, out, "[ OK ] access token [REDACTED]")
	requireContains(t, out, "All checks passed.")
	if platform.tokenCount() != 1 {
		t.Errorf("token requests = %d, want 1", platform.tokenCount())
	}
}

func TestDoctorReportsFailures(t *testing.T) {
	ws := newTestWorkspace(t, "https://api.weixin.qq.com", false)
	resetDoctorFlags(t)
	t.Setenv("APP_SECRET", "")
	writeTestFile(t, filepath.Join(ws.public, "atom.xml"), "not a feed")

	out, err := captureStdout(t, func() error {
		return doctorAction(testCommand(), nil)
	})
	if err == nil {
		t.Fatalf("expected doctor to fail, output:\n%s", out)
	}
	requireContains(t, out, "[FAIL] missing credentials: set APP_SECRET")
	requireContains(t, out, "[FAIL] source dir")
	requireContains(t, out, "[FAIL] feed")
}

func TestDoctorMissingConfig(t *testing.T) {
	resetDoctorFlags(t)
	old := configDir
	t.Cleanup(func() { configDir = old })
	configDir = filepath.Join(t.TempDir(), "absent")

	out, err := captureStdout(t, func() error {
		return doctorAction(testCommand(), nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, out, "[FAIL] config directory")
	requireContains(t, out, "[FAIL] config.yaml")
}
