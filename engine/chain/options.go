package chain

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/flowerchecker/taskchain/engine/core"
)

// EngineOptions is the chain engine's own small typed configuration —
// artifact root override, default per-fingerprint lock timeout,
// parameter-binding strictness, and log level — decoded the same way
// user pipeline configs are rather than through ad hoc constructor
// flags, per SPEC_FULL.md §9a.
type EngineOptions struct {
	// ArtifactRoot overrides the root Node's own ArtifactRoot when set.
	ArtifactRoot string `mapstructure:"artifact_root"`
	// LockTimeout bounds how long Evaluate waits to acquire a task's
	// cross-process file lock before giving up.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	// ParameterMode is "strict" (the default: a required parameter with
	// no value anywhere in the config chain is a bind-time error) or
	// "lenient" (such a parameter binds to nil instead of failing chain
	// construction).
	ParameterMode string `mapstructure:"parameter_mode" validate:"omitempty,oneof=strict lenient"`
	// LogLevel sets the chain's logger verbosity ("debug", "info",
	// "warn", "error").
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultEngineOptions returns the engine's defaults: a five-minute
// lock timeout, strict parameter binding, info-level logging.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		LockTimeout:   5 * time.Minute,
		ParameterMode: "strict",
		LogLevel:      "info",
	}
}

var engineOptionsValidator = validator.New(validator.WithRequiredStructEnabled())

// DecodeEngineOptions decodes raw (a mapping keyed by EngineOptions'
// mapstructure tags) into EngineOptions, filling in defaults for
// anything left unset. chain.New calls it with nil; no code in this
// module reads an `engine:` block from a pipeline config.
func DecodeEngineOptions(raw map[string]any) (EngineOptions, error) {
	opts := DefaultEngineOptions()
	if raw != nil {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &opts,
		})
		if err != nil {
			return opts, core.New(core.StageRun, "ENGINE_OPTIONS_DECODER_FAILED", err.Error(), err, nil)
		}
		if err := decoder.Decode(raw); err != nil {
			return opts, core.New(core.StageRun, "ENGINE_OPTIONS_DECODE_FAILED", "could not decode engine options", err, nil)
		}
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultEngineOptions().LockTimeout
	}
	if opts.ParameterMode == "" {
		opts.ParameterMode = "strict"
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}
	if err := engineOptionsValidator.Struct(opts); err != nil {
		return opts, core.New(core.StageRun, "ENGINE_OPTIONS_INVALID", err.Error(), err, nil)
	}
	return opts, nil
}
