// Package config loads and validates the enrichment service's runtime
// configuration: the HTTP listener, the Postgres connection, the three
// outbound provider clients (CRM, tax-ID resolver, deep-enrichment), the
// two webhook secrets, and the background worker pool.
//
// Precedence is defaults -> YAML file (optional) -> environment variables:
// DB_URL, CRM_TOKEN, CRM_BASE_URL, TAX_ID_RESOLVER_BASE_URL/_USER/_PASS,
// DEEP_ENRICH_API_KEY, WEBHOOK_SECRET, ADS_WEBHOOK_KEY, DEFAULT_SELLER_ID,
// DESCRIPTION_MAX_LENGTH, PORT.
package config
