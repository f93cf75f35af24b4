package audit

// ChangeFacts describes a configuration mutation for risk classification
type ChangeFacts struct {
	Action Action
	// SecretsProvided is true when any secret field was written
	SecretsProvided bool
	// SyncDirectionChanged is true when the sync direction changed
	SyncDirectionChanged bool
	// EnvironmentChanged is true when the target environment changed,
	// including the first time it is set
	EnvironmentChanged bool
	// Production is true when the configuration targets production
	Production bool
}

// ClassifyRisk applies the configuration risk policy:
//
//	DELETE, REVOKE                          HIGH
//	secret written                          MEDIUM
//	sync direction or environment changed   MEDIUM
//	any MEDIUM change in production         HIGH
//	anything else                           LOW
//
// CRITICAL is never assigned by the policy; it is reserved for entries
// recorded with an explicit level.
func ClassifyRisk(f ChangeFacts) RiskLevel {
	switch f.Action {
	case ActionDelete, ActionRevoke:
		return RiskHigh
	}

	level := RiskLow
	if f.SecretsProvided || f.SyncDirectionChanged || f.EnvironmentChanged {
		level = RiskMedium
	}
	if level == RiskMedium && f.Production {
		level = RiskHigh
	}
	return level
}
