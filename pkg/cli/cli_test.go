package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relayd.yaml")
	body := "listeners:\n  - addr: \":8880\"\n    proto: http\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"validate", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgPath = ""
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listeners: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"validate", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgPath = ""
	})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("empty listener list accepted")
	}
}

func TestValidateCommandRequiresConfigFlag(t *testing.T) {
	rootCmd.SetArgs([]string{"validate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("validate without --config accepted")
	}
}
