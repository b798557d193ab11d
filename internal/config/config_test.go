package config

import (
	"context"
	"errors"
	"testing"
)

func stubTokenCommand(t *testing.T, out string, err error) {
	t.Helper()
	orig := tokenCommand
	tokenCommand = func(context.Context) (string, error) { return out, err }
	t.Cleanup(func() { tokenCommand = orig })
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("HARVEST_WORKERS", "")
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkflowPath != DefaultWorkflowPath {
		t.Errorf("WorkflowPath = %q", cfg.WorkflowPath)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.StorageType != "none" {
		t.Errorf("StorageType = %q, want none", cfg.StorageType)
	}
}

func TestLoad_WorkersFromEnv(t *testing.T) {
	t.Setenv("HARVEST_WORKERS", "3")
	cfg, _ := Load()
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
}

func TestResolveToken_EnvWins(t *testing.T) {
	stubTokenCommand(t, "from-gh", nil)
	cfg := &Config{GitHubToken: "from-env"}
	if err := cfg.ResolveToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cfg.GitHubToken != "from-env" {
		t.Errorf("GitHubToken = %q, want from-env", cfg.GitHubToken)
	}
}

func TestResolveToken_FallsBackToGH(t *testing.T) {
	stubTokenCommand(t, "gho_abc\n", nil)
	cfg := &Config{}
	if err := cfg.ResolveToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cfg.GitHubToken != "gho_abc" {
		t.Errorf("GitHubToken = %q, want gho_abc", cfg.GitHubToken)
	}
}

func TestResolveToken_MissingIsFatal(t *testing.T) {
	stubTokenCommand(t, "", errors.New("gh: not logged in"))
	cfg := &Config{}
	err := cfg.ResolveToken(context.Background())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Field != "GITHUB_TOKEN" {
		t.Errorf("Field = %q", cfgErr.Field)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		StorageType:  "none",
		Workers:      10,
		WorkflowPath: DefaultWorkflowPath,
		ArtifactName: DefaultArtifactName,
		ReportMember: DefaultReportMember,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(c *Config){
		"bad storage":       func(c *Config) { c.StorageType = "mongo" },
		"postgres no url":   func(c *Config) { c.StorageType = "postgres" },
		"zero workers":      func(c *Config) { c.Workers = 0 },
		"empty artifact":    func(c *Config) { c.ArtifactName = "" },
		"empty workflow":    func(c *Config) { c.WorkflowPath = "" },
		"empty report name": func(c *Config) { c.ReportMember = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
