package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Discovery.Subnet != "192.168.1.0/24" {
		t.Errorf("unexpected default subnet: %q", cfg.Discovery.Subnet)
	}
	if cfg.Modbus.MaxBatchSize != 125 {
		t.Errorf("unexpected default max_batch_size: %d", cfg.Modbus.MaxBatchSize)
	}
	if cfg.Buffer.Path == "" {
		t.Error("expected non-empty default buffer path")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SUNSPEC_SUBNET", "10.0.0.0/24")
	t.Setenv("SUNSPEC_MAX_BATCH_SIZE", "64")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Discovery.Subnet != "10.0.0.0/24" {
		t.Errorf("expected env override, got %q", cfg.Discovery.Subnet)
	}
	if cfg.Modbus.MaxBatchSize != 64 {
		t.Errorf("expected env override, got %d", cfg.Modbus.MaxBatchSize)
	}
}

func TestLoad_UnitIDsFromEnv(t *testing.T) {
	t.Setenv("SUNSPEC_UNIT_IDS", "1,2,3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 3}
	if len(cfg.Discovery.UnitIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Discovery.UnitIDs)
	}
	for i, v := range want {
		if cfg.Discovery.UnitIDs[i] != v {
			t.Errorf("expected %v, got %v", want, cfg.Discovery.UnitIDs)
		}
	}
}

func TestMergeConfigs_EnvOverridesFile(t *testing.T) {
	fileCfg := baseValidConfig()
	fileCfg.Discovery.Subnet = "10.0.0.0/24"
	fileCfg.Modbus.MaxBatchSize = 50

	envCfg := baseValidConfig()
	envCfg.Discovery.Subnet = "10.0.0.0/24" // same value as the file config in this test
	envCfg.Modbus.MaxBatchSize = 999        // simulates an explicit env override

	merged := mergeConfigs(fileCfg, envCfg)
	if merged.Modbus.MaxBatchSize != 999 {
		t.Errorf("expected env value to win, got %d", merged.Modbus.MaxBatchSize)
	}
}

func TestMergeConfigs_FileValuePreservedWhenEnvZero(t *testing.T) {
	fileCfg := baseValidConfig()
	fileCfg.Buffer.BatchSize = 42

	envCfg := baseValidConfig()
	envCfg.Buffer.BatchSize = 0

	merged := mergeConfigs(fileCfg, envCfg)
	if merged.Buffer.BatchSize != 42 {
		t.Errorf("expected file value to survive merge, got %d", merged.Buffer.BatchSize)
	}
}
