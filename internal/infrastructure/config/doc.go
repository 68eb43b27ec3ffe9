// Package config handles loading and validating the bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MIPLUG_* environment variables
//   - Validation of required fields, collecting every error
//   - Default value handling
//
// Security Considerations:
//   - The plug token, JWT secret and admin password hash should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Accessory.Name)
package config
