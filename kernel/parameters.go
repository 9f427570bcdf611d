package kernel

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type (
	// Type names a kernel family.
	Type string

	// Parameters select a kernel and the memory
	// given to caching its rows.
	Parameters struct {
		Type Type `yaml:"type" validate:"oneof=linear polynomial rbf sigmoid precomputed"`
		// Degree of the polynomial kernel.
		Degree int `yaml:"degree" validate:"gte=0"`
		// Gamma scales the inner product or distance.
		// Zero selects 1/dimension.
		Gamma float64 `yaml:"gamma" validate:"gte=0"`
		Coef0 float64 `yaml:"coef0"`
		// CacheSizeMB is the kernel row cache budget in MiB.
		CacheSizeMB float64 `yaml:"cache_size_mb" validate:"gt=0"`
	}
)

const (
	Linear      Type = "linear"      // u'v
	Polynomial  Type = "polynomial"  // (gamma*u'v + coef0)^degree
	RBF         Type = "rbf"         // exp(-gamma*|u-v|^2)
	Sigmoid     Type = "sigmoid"     // tanh(gamma*u'v + coef0)
	Precomputed Type = "precomputed" // sample serial number in column 0
)

type constError string

// ErrInvalidParameters may be returned when
// validating or loading [Parameters].
const ErrInvalidParameters = constError("invalid kernel parameters")

func (errStr constError) Error() string { return string(errStr) }

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultParameters returns the parameters of an RBF kernel
// with a 100MiB cache.
func DefaultParameters() Parameters {
	return Parameters{
		Type:        RBF,
		Degree:      3,
		CacheSizeMB: 100,
	}
}

// Validate reports whether the parameters are usable.
func (p Parameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return nil
}

// CacheBytes returns the cache budget in bytes.
func (p Parameters) CacheBytes() int64 {
	return int64(p.CacheSizeMB * (1 << 20))
}

// LoadParameters decodes YAML over [DefaultParameters]
// and validates the result. Empty input yields the defaults.
func LoadParameters(r io.Reader) (Parameters, error) {
	var (
		params  = DefaultParameters()
		decoder = yaml.NewDecoder(r)
	)
	decoder.KnownFields(true)
	if err := decoder.Decode(&params); err != nil &&
		!errors.Is(err, io.EOF) {
		return Parameters{}, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	if err := params.Validate(); err != nil {
		return Parameters{}, err
	}
	return params, nil
}
