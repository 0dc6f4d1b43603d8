package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/domain/settlement"
)

// Resolution 価格解決の結果
type Resolution struct {
	Amount  int64
	Package *catalog.Package
}

// PriceResolver 事業者・パッケージ・金額指定から請求額を1つに確定するドメインサービス
type PriceResolver struct {
	packageRepo catalog.PackageRepository
}

// NewPriceResolver 新しいPriceResolverを作成
func NewPriceResolver(packageRepo catalog.PackageRepository) *PriceResolver {
	return &PriceResolver{
		packageRepo: packageRepo,
	}
}

// Resolve 請求額を確定する
//
// packageID が空で amount が nil の場合は ErrMissingChargeSpecification。
// 同じ入力とカタログに対して常に同じ額を返す。
func (r *PriceResolver) Resolve(ctx context.Context, operator *catalog.Operator, packageID string, amount *decimal.Decimal) (*Resolution, error) {
	if packageID == "" {
		return r.resolveDirect(operator, amount)
	}

	pkg, err := r.packageRepo.FindByOperatorAndID(ctx, operator.Key(), packageID)
	if errors.Is(err, catalog.ErrPackageNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", settlement.ErrPackageNotFound, operator.Key(), packageID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find package: %v", settlement.ErrPersistence, err)
	}
	if pkg.Category() != operator.Category() {
		return nil, fmt.Errorf("%w: %s/%s", settlement.ErrPackageNotFound, operator.Key(), packageID)
	}

	if pkg.HasVariablePrice() {
		if amount == nil {
			return nil, settlement.ErrAmountRequired
		}
		charge, err := chargeAmount(*amount)
		if err != nil {
			return nil, err
		}
		return &Resolution{Amount: charge, Package: pkg}, nil
	}

	price, err := fixedPrice(pkg.Price())
	if err != nil {
		return nil, err
	}
	return &Resolution{Amount: price, Package: pkg}, nil
}

func (r *PriceResolver) resolveDirect(operator *catalog.Operator, amount *decimal.Decimal) (*Resolution, error) {
	if amount == nil {
		return nil, settlement.ErrMissingChargeSpecification
	}
	if operator.Category().IsGame() {
		return nil, settlement.ErrUnsupportedDirectAmount
	}
	charge, err := chargeAmount(*amount)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Amount:  charge,
		Package: catalog.NewDirectRechargePackage(operator.Key(), operator.Category()),
	}, nil
}

// chargeAmount 利用者指定の金額を検証する（正の整数のみ）
func chargeAmount(d decimal.Decimal) (int64, error) {
	v, ok := balance.WholeAmount(d)
	if !ok {
		return 0, fmt.Errorf("%w: amount must be a positive whole number up to %d", settlement.ErrInvalidAmount, balance.MaxAmount)
	}
	return v, nil
}

// fixedPrice カタログの固定価格を検証する
func fixedPrice(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", settlement.ErrInvalidPriceFormat, raw)
	}
	v, ok := balance.WholeAmount(d)
	if !ok {
		return 0, fmt.Errorf("%w: %q", settlement.ErrInvalidPriceFormat, raw)
	}
	return v, nil
}
