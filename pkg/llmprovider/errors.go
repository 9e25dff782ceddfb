package llmprovider

import "github.com/liliang-cn/agentmem/pkg/memerr"

// ErrNoCredentials is returned by AutoDetect when no configured provider's
// credential key is present in the environment (§7 ConfigurationMissing).
var ErrNoCredentials = memerr.ErrConfigurationMissing
