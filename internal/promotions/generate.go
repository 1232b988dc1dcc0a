package promotions

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
)

const maxBulkCodes = 1000

// BulkGenerate returns up to count fresh codes of the form PREFIX-XXXXXXXX.
// Candidates that collide with a stored code or with each other are
// dropped, not regenerated. Nothing is persisted.
func (s *Service) BulkGenerate(ctx context.Context, actor audit.Actor, prefix string, count int) ([]string, error) {
	prefix = NormalizeCode(prefix)
	if prefix == "" {
		return nil, errs.InvalidArgument("Code prefix is required")
	}
	if count < 1 || count > maxBulkCodes {
		return nil, errs.InvalidArgument("Count must be between 1 and %d", maxBulkCodes)
	}

	candidates := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	buf := make([]byte, 4)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(s.random, buf); err != nil {
			return nil, fmt.Errorf("reading random bytes: %w", err)
		}
		code := prefix + "-" + strings.ToUpper(hex.EncodeToString(buf))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		candidates = append(candidates, code)
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("code IN ?", candidates).
		Pluck("code", &existing).Error; err != nil {
		return nil, fmt.Errorf("checking existing codes: %w", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		taken[c] = struct{}{}
	}

	codes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := taken[c]; !ok {
			codes = append(codes, c)
		}
	}

	s.logger.Info("promotion codes generated", "prefix", prefix, "requested", count, "generated", len(codes))
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionPromotionBulkGenerate, audit.TargetPromotion, "", map[string]any{
		"prefix":    prefix,
		"requested": count,
		"generated": len(codes),
	}))
	return codes, nil
}
