package queue

import "github.com/confluentinc/confluent-kafka-go/v2/kafka"

// SASLConfig holds the broker authentication settings. Authentication is enabled
// when both a username and a password are set.
type SASLConfig struct {
	Username         string `env:"KAFKA_SASL_USERNAME"`
	Password         string `env:"KAFKA_SASL_PASSWORD"`
	Mechanism        string `env:"KAFKA_SASL_MECHANISM"    envDefault:"SCRAM-SHA-512"`
	SecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL" envDefault:"SASL_SSL"`
}

// Enabled reports whether credentials are configured.
func (c SASLConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// ApplyToConfigMap adds the SASL settings to cm. It does nothing when SASL is disabled.
func (c SASLConfig) ApplyToConfigMap(cm *kafka.ConfigMap) {
	if !c.Enabled() {
		return
	}
	(*cm)["security.protocol"] = c.SecurityProtocol
	(*cm)["sasl.mechanisms"] = c.Mechanism
	(*cm)["sasl.username"] = c.Username
	(*cm)["sasl.password"] = c.Password
}
