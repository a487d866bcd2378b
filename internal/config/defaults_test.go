package config

import "testing"

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	if cfg.StoreDSN != DefaultStoreDSN {
		t.Errorf("StoreDSN = %q, want %q", cfg.StoreDSN, DefaultStoreDSN)
	}
	if cfg.PlannerStrategy != DefaultPlannerStrategy {
		t.Errorf("PlannerStrategy = %q, want %q", cfg.PlannerStrategy, DefaultPlannerStrategy)
	}
	if cfg.RetentionLeewaySeconds != DefaultRetentionLeewaySeconds {
		t.Errorf("RetentionLeewaySeconds = %d, want %d", cfg.RetentionLeewaySeconds, DefaultRetentionLeewaySeconds)
	}
	if cfg.MetricsAddr != DefaultMetricsAddr {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, DefaultMetricsAddr)
	}
}

func TestDefault_ReturnsFreshInstance(t *testing.T) {
	a := Default()
	b := Default()
	a.PlannerStrategy = "fifo"
	if b.PlannerStrategy == "fifo" {
		t.Error("Default() returned a shared instance; mutation leaked")
	}
}
