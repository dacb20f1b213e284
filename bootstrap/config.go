package bootstrap

import (
	"github.com/kbukum/qprofile/config"
)

// Config is the constraint for application configuration types. Any struct
// embedding config.ServiceConfig by value satisfies it through promoted
// methods once it adds its own ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
