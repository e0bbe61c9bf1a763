package domain

// FailPolicy decides how gateways behave when their external system is
// unreachable. FailClosed surfaces ExternalServiceError; FailOpen substitutes
// synthetic data with a warning, the original degraded-mode behavior.
type FailPolicy string

const (
	FailClosed FailPolicy = "closed"
	FailOpen   FailPolicy = "open"
)

func (p FailPolicy) Valid() bool {
	return p == FailClosed || p == FailOpen
}

// Config is the node identity handed to services and handlers.
type Config struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`

	// ---
	Address string
}
