package catalog

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config controls product listings.
type Config struct {
	PageSize int `mapstructure:"page_size"`

	// ContextFields are the filters defining what is being listed, such as
	// the category or the search phrase. Results are only retained across
	// changes that leave all of them untouched.
	ContextFields []string `mapstructure:"context_fields"`

	// StaleTime overrides the query cache default for product lists.
	StaleTime time.Duration `mapstructure:"stale_time"`
}

// DefaultConfig returns the storefront listing defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:      24,
		ContextFields: []string{"category", "q"},
		StaleTime:     time.Minute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(200)),
		validation.Field(&c.ContextFields, validation.Required, validation.Each(validation.Required, validation.By(notReserved))),
		validation.Field(&c.StaleTime, validation.Min(time.Duration(0))),
	)
}

func notReserved(value any) error {
	field, _ := value.(string)
	if field == FieldPage || field == FieldOrder {
		return ErrReservedField
	}
	return nil
}
