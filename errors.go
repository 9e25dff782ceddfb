package agentmem

import (
	"errors"

	"github.com/liliang-cn/agentmem/pkg/memerr"
)

// Re-exported sentinels so callers of the root package need not import
// pkg/memerr directly for the common cases (errors.Is still works across
// both since these are the same values).
var (
	ErrStoreUnavailable     = memerr.ErrStoreUnavailable
	ErrConfigurationMissing = memerr.ErrConfigurationMissing
	ErrNotFound             = memerr.ErrNotFound
)

// ErrAlreadyClosed is returned by Engine methods called after Close.
var ErrAlreadyClosed = errors.New("agentmem: engine is closed")
