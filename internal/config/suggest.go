package config

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

// EngineOptions converts the suggest section into engine options.
// Malformed rules or allowlists are logged and treated as empty.
func (c *SuggestConfig) EngineOptions(logger zerolog.Logger) suggest.Options {
	opts := suggest.Options{
		MinGroupSize:    max(c.MinGroupSize, 1),
		EnableFranchise: c.EnableFranchise,
		EnableStudio:    c.EnableStudio,
		EnableFormat:    c.EnableFormat,
		EnableLength:    c.EnableLength,
		EnableAudience:  c.EnableAudience,
		EnableMood:      c.EnableMood,
		TopStudios:      c.TopStudios,
	}

	rules, err := suggest.ParseFranchiseRules([]byte(c.FranchiseRulesJSON))
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed franchise rules")
		rules = nil
	}

	if c.FranchiseRulesFile != "" {
		data, err := os.ReadFile(c.FranchiseRulesFile)
		if err != nil {
			logger.Warn().Err(err).Str("path", c.FranchiseRulesFile).Msg("Failed to read franchise rules file")
		} else if fileRules, err := suggest.ParseFranchiseRules(data); err != nil {
			logger.Warn().Err(err).Str("path", c.FranchiseRulesFile).Msg("Ignoring malformed franchise rules file")
		} else {
			rules = suggest.MergeFranchiseRules(rules, fileRules)
		}
	}
	opts.FranchiseRules = rules

	allowlist, err := suggest.ParseStudioAllowlist([]byte(c.StudioAllowlistJSON))
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed studio allowlist")
		allowlist = nil
	}
	opts.StudioAllowlist = allowlist

	return opts
}
