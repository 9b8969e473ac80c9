// Package config loads and validates s3rotate configuration.
//
// Configuration is a YAML file with environment variable overrides:
//
//	cfg, err := config.LoadConfig("config.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention S3ROTATE_SECTION_FIELD:
//
//   - S3ROTATE_REMOTE_S3_BUCKET overrides remote.s3.bucket
//   - S3ROTATE_FAMILIES_DB_PROD_LOCAL_DIR overrides local_dir of family "db-prod"
//   - S3ROTATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Precedence
//
// Values are applied in this order, later overriding earlier:
//
//  1. Values from the YAML file
//  2. Environment variable overrides
//  3. Defaults for anything still unset (family fields inherit from the
//     defaults section, which inherits from the built-in defaults)
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	remote:
//	  backend: s3
//	  s3:
//	    bucket: company-backups
//	    region: eu-west-1
//	families:
//	  - name: db-prod
//	    local_dir: /var/backups/db
//	    limits:
//	      daily: 14
//	  - name: uploads
//	    local_dir: /var/backups/uploads
//	    date_pattern: 'uploads-(\d+)'
//	    date_format: '%s'
//	    schedule: "30 4 * * *"
//
// # Singleton
//
// The daemon keeps the active configuration in a process-wide singleton:
//
//	if err := config.Initialize("config.yaml"); err != nil { ... }
//	cfg := config.GetConfig()
//	config.OnReload(func(cfg *config.Config) { ... })
package config
