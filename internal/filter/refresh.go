package filter

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mariasu11/grepstream/internal/config"
)

// binding tracks which config id a stage was configured from. Stages embed
// it and pass their own fill function, which must either apply every
// parameter of the id or none of them.
type binding struct {
	logger   hclog.Logger
	source   config.Source
	configID string
	locked   bool
}

func newBinding(logger hclog.Logger, name string) binding {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return binding{logger: logger.Named(name)}
}

// SetSource implements Refreshable
func (b *binding) SetSource(src config.Source) {
	b.source = src
	b.configID = ""
}

// ConfigID implements Refreshable
func (b *binding) ConfigID() string {
	return b.configID
}

// Lock implements Refreshable
func (b *binding) Lock() {
	b.locked = true
}

func (b *binding) bind(configID string, fill func(src config.Source, id string) error) (bool, error) {
	if configID == "" {
		return false, errors.Wrap(ErrInvalidArgument, "config id must not be empty")
	}

	if b.source == nil || b.locked {
		b.logger.Debug("Refresh is locked", "config_id", configID, "source_missing", b.source == nil, "locked", b.locked)
		return false, nil
	}

	if b.configID == configID {
		return false, nil
	}

	if err := fill(b.source, configID); err != nil {
		if IsBindingError(err) {
			b.logger.Debug("Not refreshing", "config_id", configID, "reason", err)
			return false, nil
		}
		return false, err
	}

	b.configID = configID
	b.logger.Debug("Refreshed", "config_id", configID)
	return true, nil
}

func (b *binding) configure(configID string, fill func(src config.Source, id string) error) error {
	if configID == "" {
		return errors.Wrap(ErrInvalidArgument, "config id must not be empty")
	}
	if b.locked {
		return errors.Wrapf(ErrIllegalState, "configuration is locked, can't apply %q", configID)
	}
	if b.source == nil {
		return errors.Wrapf(ErrConfigNotFound, "no configuration source for %q", configID)
	}

	if err := fill(b.source, configID); err != nil {
		return err
	}
	b.configID = configID
	return nil
}

func (b *binding) exportID(configID string) (string, error) {
	if configID != "" {
		return configID, nil
	}
	if b.configID == "" {
		return "", errors.Wrap(ErrInvalidArgument, "can't derive config id (none was supplied)")
	}
	return b.configID, nil
}
