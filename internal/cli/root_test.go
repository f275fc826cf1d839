package cli

import (
	"context"
	"testing"

	"github.com/selfboot/mpdraft/internal/config"
)

func TestVersionNotEmpty(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestExecuteVersion(t *testing.T) {
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if err := Execute(context.Background()); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
}

func TestConfigFlagDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("missing --config flag")
	}
	if flag.DefValue != config.DefaultConfigDir {
		t.Errorf("--config default = %q, want %q", flag.DefValue, config.DefaultConfigDir)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"publish", "preview", "history", "doctor", "init", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
