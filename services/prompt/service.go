package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/leads-guard/config"
	"github.com/upb/leads-guard/internal/observability"
	intprompt "github.com/upb/leads-guard/internal/prompt"
	"github.com/upb/leads-guard/services"
	"go.uber.org/zap"
)

// ScreenService screens user messages before they reach the agent.
type ScreenService struct {
	screen *intprompt.Screen
	mode   intprompt.Mode
	logger *zap.Logger
}

// NewScreenService creates a screen service running in mode
func NewScreenService(screen *intprompt.Screen, mode intprompt.Mode, logger *zap.Logger) *ScreenService {
	if !mode.IsValid() {
		mode = intprompt.ModeEnforcing
	}
	return &ScreenService{
		screen: screen,
		mode:   mode,
		logger: logger,
	}
}

// NewScreenServiceFromConfig loads the signature table named by cfg, or the
// built-in one, and applies the configured limits and mode.
func NewScreenServiceFromConfig(cfg config.ScreenConfig, logger *zap.Logger) (*ScreenService, error) {
	var (
		table *intprompt.SignatureTable
		err   error
	)
	if cfg.SignaturesFile != "" {
		table, err = intprompt.LoadSignaturesFile(cfg.SignaturesFile)
	} else {
		table, err = intprompt.DefaultSignatures()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load screen signatures: %w", err)
	}

	mode := intprompt.ModeEnforcing
	if cfg.Mode != "" {
		if mode, err = intprompt.ParseMode(cfg.Mode); err != nil {
			return nil, err
		}
	}

	screen := intprompt.NewScreen(table, intprompt.Limits{
		MaxInputLength:      cfg.MaxInputLength,
		MaxSpecialCharRatio: cfg.MaxSpecialCharRatio,
	})

	logger.Info("input screen loaded",
		zap.Int("signatures", screen.SignatureCount()),
		zap.String("mode", string(mode)),
		zap.Bool("custom_table", cfg.SignaturesFile != ""))

	return NewScreenService(screen, mode, logger), nil
}

// Mode returns the mode verdicts are produced under
func (s *ScreenService) Mode() intprompt.Mode {
	return s.mode
}

// Screen checks message and returns the verdict. A rejection in enforcing
// mode also returns an input_rejected error; in advisory mode it is logged
// at warn level and the request continues.
func (s *ScreenService) Screen(ctx context.Context, message string) (intprompt.Verdict, error) {
	select {
	case <-ctx.Done():
		return intprompt.Verdict{}, ctx.Err()
	default:
	}

	if err := validateFormat(message); err != nil {
		return intprompt.Verdict{}, err
	}

	verdict := s.screen.Check(message, s.mode)
	observability.ObserveScreen(string(verdict.Category), string(s.mode), verdict.Blocks())

	if verdict.Allowed() {
		return verdict, nil
	}

	fields := []zap.Field{
		zap.String("category", string(verdict.Category)),
		zap.String("signature", verdict.Signature),
		zap.String("match", verdict.Match),
	}

	if !verdict.Blocks() {
		s.logger.Warn("input screen rejection ignored in advisory mode", fields...)
		return verdict, nil
	}

	s.logger.Info("input rejected", fields...)
	return verdict, services.NewDomainError(services.ErrorTypeInputRejected, verdict.Reason, nil).
		WithDetail("category", string(verdict.Category))
}

// validateFormat rejects control characters other than common whitespace
func validateFormat(message string) error {
	if strings.ContainsRune(message, 0) {
		return services.NewDomainError(services.ErrorTypeValidation, "message contains null bytes", nil)
	}
	for _, r := range message {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return services.NewDomainError(services.ErrorTypeValidation, "message contains invalid control characters", nil)
		}
	}
	return nil
}
