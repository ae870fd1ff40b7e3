package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aamamun24/FineMed-Server/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	productCachePrefix     = "product:detail:"
	productListCachePrefix = "products:v:"
	productCacheVersionKey = "products:version"
	defaultProductCacheTTL = 5 * time.Minute
)

// ProductPage is one cached page of the catalog.
type ProductPage struct {
	Products []models.Product     `json:"products"`
	Meta     models.PaginationMeta `json:"meta"`
}

// ProductCache caches catalog reads. Implementations must treat every error as
// a miss.
type ProductCache interface {
	GetList(ctx context.Context, q models.ProductQuery) (*ProductPage, bool)
	SetListAsync(q models.ProductQuery, page *ProductPage)
	GetProduct(ctx context.Context, id string) (*models.Product, bool)
	SetProductAsync(p *models.Product)
	InvalidateProduct(ctx context.Context, id string)
}

// CacheManager stores products in Redis. List keys embed a version number so
// one INCR invalidates every cached page.
type CacheManager struct {
	rdb redis.Cmdable
	ttl time.Duration
	log *zap.Logger
}

func NewCacheManager(rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CacheManager {
	if ttl <= 0 {
		ttl = defaultProductCacheTTL
	}
	return &CacheManager{rdb: rdb, ttl: ttl, log: log}
}

func (cm *CacheManager) GetList(ctx context.Context, q models.ProductQuery) (*ProductPage, bool) {
	version, err := cm.version(ctx)
	if err != nil {
		return nil, false
	}
	raw, err := cm.rdb.Get(ctx, listKey(version, q)).Bytes()
	if err != nil {
		return nil, false
	}
	var page ProductPage
	if err := json.Unmarshal(raw, &page); err != nil {
		cm.log.Warn("failed to unmarshal cached product list", zap.Error(err))
		return nil, false
	}
	return &page, true
}

func (cm *CacheManager) SetListAsync(q models.ProductQuery, page *ProductPage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := cm.version(ctx)
		if err != nil {
			return
		}
		body, err := json.Marshal(page)
		if err != nil {
			cm.log.Warn("failed to marshal product list for cache", zap.Error(err))
			return
		}
		if err := cm.rdb.Set(ctx, listKey(version, q), body, cm.ttl).Err(); err != nil {
			cm.log.Warn("failed to cache product list", zap.Error(err))
		}
	}()
}

func (cm *CacheManager) GetProduct(ctx context.Context, id string) (*models.Product, bool) {
	raw, err := cm.rdb.Get(ctx, productCachePrefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (cm *CacheManager) SetProductAsync(p *models.Product) {
	body, err := json.Marshal(p)
	if err != nil {
		cm.log.Warn("failed to marshal product for cache", zap.Error(err), zap.String("product_id", p.ID.String()))
		return
	}
	key := productCachePrefix + p.ID.String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cm.rdb.Set(ctx, key, body, cm.ttl).Err(); err != nil {
			cm.log.Warn("failed to cache product", zap.Error(err), zap.String("key", key))
		}
	}()
}

// InvalidateProduct bumps the list version and drops the product's own key.
func (cm *CacheManager) InvalidateProduct(ctx context.Context, id string) {
	if _, err := cm.rdb.Incr(ctx, productCacheVersionKey).Result(); err != nil {
		cm.log.Error("failed to invalidate product list cache", zap.Error(err), zap.String("product_id", id))
	}
	if id == "" {
		return
	}
	if err := cm.rdb.Del(ctx, productCachePrefix+id).Err(); err != nil {
		cm.log.Warn("failed to delete product cache", zap.Error(err), zap.String("product_id", id))
	}
}

func (cm *CacheManager) version(ctx context.Context) (int64, error) {
	ver, err := cm.rdb.Get(ctx, productCacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := cm.rdb.SetNX(ctx, productCacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return cm.rdb.Get(ctx, productCacheVersionKey).Int64()
	}
	return ver, err
}

func listKey(version int64, q models.ProductQuery) string {
	return fmt.Sprintf("%s%d:p:%d:l:%d:q:%s:c:%s:f:%s:b:%s:rx:%s:min:%s:max:%s:s:%s:fields:%s",
		productListCachePrefix, version, q.Page, q.Limit,
		q.SearchTerm, q.Category, q.Form, q.Brand,
		optBool(q.PrescriptionRequired), optDecimal(q.MinPrice), optDecimal(q.MaxPrice),
		q.Sort, q.Fields)
}
