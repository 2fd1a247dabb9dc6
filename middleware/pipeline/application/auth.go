package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"model-gateway/log"
	"model-gateway/middleware/pipeline/domain"
)

// AuthService verifies the signed bearer token of a request against the
// shared secret, bypassing paths on the live allow-list.
type AuthService struct {
	Config domain.ConfigProvider
	Secret []byte

	Now func() time.Time
}

// Authenticate returns nil when the request may proceed. Rejections are
// typed domain errors: missing credentials map to 401, anything presenting
// a bad credential maps to 403.
func (s AuthService) Authenticate(ctx context.Context, path, header string) error {
	snap, err := s.Config.Snapshot(ctx)
	if err != nil {
		return domain.UpstreamFailure(err)
	}
	if snap.Allow.Contains(path) {
		return nil
	}

	if header == "" {
		log.Logger().Warn("missing credentials", zap.String("path", path))
		return domain.TokenMissing()
	}

	tok, err := domain.ParseToken(header)
	if err != nil {
		log.Logger().Warn("token parse failed",
			zap.String("path", path),
			zap.String("token", domain.Redact(header)),
			zap.Error(err),
		)
		return domain.TokenMalformed(err)
	}

	if tok.Expired(s.now()) {
		log.Logger().Warn("token expired",
			zap.String("path", path),
			zap.String("app_id", tok.AppID),
			zap.Int64("expires_at", tok.ExpiresAt),
		)
		return domain.TokenExpired()
	}

	if !tok.Verify(s.Secret) {
		log.Logger().Warn("token signature mismatch",
			zap.String("path", path),
			zap.String("app_id", tok.AppID),
			zap.String("token", domain.Redact(header)),
		)
		return domain.TokenSignature()
	}

	return nil
}

func (s AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
