package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"recharge-server/internal/domain/catalog"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// kvClient パッケージキャッシュが使うRedisコマンド
type kvClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type cachedPackage struct {
	ID                     string  `json:"id"`
	Operator               string  `json:"operator"`
	Category               string  `json:"category"`
	Name                   string  `json:"name"`
	Price                  string  `json:"price"`
	PriceAlternateCurrency *string `json:"price_alternate_currency,omitempty"`
}

// PackageKey パッケージキャッシュのキー
func PackageKey(operator, packageID string) string {
	return fmt.Sprintf("recharge:package:v1:%s:%s", operator, packageID)
}

// CachedPackageRepository Redisによる読み取りキャッシュ付きPackageRepository
//
// キャッシュの障害時は下位リポジトリにフォールバックする。
type CachedPackageRepository struct {
	next   catalog.PackageRepository
	client kvClient
	ttl    time.Duration
	logger *otelinfra.Logger
}

// NewCachedPackageRepository 新しいCachedPackageRepositoryを作成
func NewCachedPackageRepository(next catalog.PackageRepository, client kvClient, ttl time.Duration, logger *otelinfra.Logger) *CachedPackageRepository {
	return &CachedPackageRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// FindByOperatorAndID キャッシュを優先してパッケージを取得
func (r *CachedPackageRepository) FindByOperatorAndID(ctx context.Context, operator, packageID string) (*catalog.Package, error) {
	key := PackageKey(operator, packageID)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		p, derr := decodePackage(data)
		if derr == nil {
			return p, nil
		}
		r.logger.Warn(ctx, "Discarding undecodable package cache entry", map[string]interface{}{
			"key":   key,
			"error": derr.Error(),
		})
	case !errors.Is(err, redis.Nil):
		r.logger.Warn(ctx, "Package cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	p, err := r.next.FindByOperatorAndID(ctx, operator, packageID)
	if err != nil {
		return nil, err
	}

	if encoded, err := encodePackage(p); err == nil {
		if err := r.client.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
			r.logger.Warn(ctx, "Package cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return p, nil
}

// FindByOperator 事業者のパッケージ一覧を取得（キャッシュしない）
func (r *CachedPackageRepository) FindByOperator(ctx context.Context, operator string) ([]*catalog.Package, error) {
	return r.next.FindByOperator(ctx, operator)
}

func encodePackage(p *catalog.Package) ([]byte, error) {
	return json.Marshal(cachedPackage{
		ID:                     p.ID(),
		Operator:               p.Operator(),
		Category:               p.Category().String(),
		Name:                   p.Name(),
		Price:                  p.Price(),
		PriceAlternateCurrency: p.PriceAlternateCurrency(),
	})
}

func decodePackage(data []byte) (*catalog.Package, error) {
	var c cachedPackage
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	category, err := catalog.NewCategory(c.Category)
	if err != nil {
		return nil, err
	}
	return catalog.NewPackage(c.ID, c.Operator, category, c.Name, c.Price, c.PriceAlternateCurrency), nil
}
