// Package common holds service-wide variables and logging setup.
package common

// PackageName identifies the service in metrics and logs.
const PackageName = "trade-finance-backend"

// Version is set at build time via ldflags.
var Version = "dev"
