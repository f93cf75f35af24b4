// Package integration contains the Integration bounded context.
// It owns the per-tenant connection settings for the CRM, payments and
// accounting platforms, and the resilience state attached to them.
//
// Key concepts:
//   - IntegrationConfig: aggregate holding encrypted credentials, health and
//     a circuit breaker for one (tenant, platform, config type, environment)
//   - WebhookConfig: outbound webhook endpoint with an encrypted signing
//     secret and its own circuit breaker
//   - CircuitBreaker: advisory Closed/Open/HalfOpen value object. It records
//     outcomes and reports state; callers decide whether to proceed.
//
// Design Pattern: Ports & Adapters
//   - SecretCipher and HealthProbe are ports defined here
//   - The vault and platform probes implementing them live in infrastructure
package integration
