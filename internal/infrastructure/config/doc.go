// Package config handles loading and validating litesql configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading a .env file from the working directory
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/litesql.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Name)
//
// Without a file, config.Default() yields the defaults with environment overrides applied.
package config
