package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"tocd/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Node.ListenAddr != "http://127.0.0.1:6335" {
		t.Fatalf("unexpected listen addr: %s", AppConfig.Node.ListenAddr)
	}
	if AppConfig.Storage.Optimizers.MaxOptimizationThreads != 4 {
		t.Fatalf("expected default max_optimization_threads 4, got %d", AppConfig.Storage.Optimizers.MaxOptimizationThreads)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Storage.Optimizers.MaxOptimizationThreads != 2 {
		t.Fatalf("expected bootstrap override of max_optimization_threads to 2, got %d", AppConfig.Storage.Optimizers.MaxOptimizationThreads)
	}
	if !AppConfig.Node.FirstPeer {
		t.Fatalf("expected first_peer true from bootstrap override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("node:\n  listen_addr: sandbox-addr\n  first_peer: false\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Node.ListenAddr != "sandbox-addr" {
		t.Fatalf("expected listen addr sandbox-addr, got %s", AppConfig.Node.ListenAddr)
	}
	if AppConfig.Node.FirstPeer {
		t.Fatalf("expected first_peer false from sandbox config")
	}
}
