package config

import "time"

const (
	DefaultStoreDSN               = "file:retz.db?_pragma=busy_timeout(5000)"
	DefaultPlannerStrategy        = "priority"
	DefaultRetentionLeewaySeconds = 86400
	DefaultRetentionInterval      = 10 * time.Minute
	DefaultListenAddr             = ":9091"
	DefaultMetricsAddr            = ":9092"
	DefaultOfferPollInterval      = 5 * time.Second
)

// Default returns a Config with all default values applied.
func Default() *Config {
	return &Config{
		StoreDSN:               DefaultStoreDSN,
		PlannerStrategy:        DefaultPlannerStrategy,
		RetentionLeewaySeconds: DefaultRetentionLeewaySeconds,
		RetentionInterval:      DefaultRetentionInterval,
		ListenAddr:             DefaultListenAddr,
		MetricsAddr:            DefaultMetricsAddr,
		OfferPollInterval:      DefaultOfferPollInterval,
	}
}
