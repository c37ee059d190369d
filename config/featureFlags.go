package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RequireCustomerPhone makes create-bill reject bills without a customer phone.
//
// Set via env:
// - REQUIRE_CUSTOMER_PHONE=true
func RequireCustomerPhone() bool {
	return envBool("REQUIRE_CUSTOMER_PHONE")
}

// ReconciliationEnabled turns on the scheduled vendor/shop ledger reconciliation.
//
// Set via env:
// - ENABLE_LEDGER_RECONCILIATION=true
func ReconciliationEnabled() bool {
	return envBool("ENABLE_LEDGER_RECONCILIATION")
}

// SkipMigrations disables AutoMigrate at startup (schema managed externally).
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}
