package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/catalog"
)

// PackageRepository MySQL実装のPackageRepository（読み取り専用）
type PackageRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewPackageRepository 新しいPackageRepositoryを作成
func NewPackageRepository(db *DB) *PackageRepository {
	return &PackageRepository{
		db:     db,
		tracer: otel.Tracer("package-repository"),
	}
}

// FindByOperatorAndID 事業者とパッケージIDでパッケージを取得
func (r *PackageRepository) FindByOperatorAndID(ctx context.Context, operator, packageID string) (*catalog.Package, error) {
	ctx, span := r.tracer.Start(ctx, "PackageRepository.FindByOperatorAndID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operator", operator),
		attribute.String("db.package_id", packageID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "packages"),
	)

	query := `
		SELECT package_id, operator, category, name, price, price_alternate_currency
		FROM packages
		WHERE operator = ? AND package_id = ?
	`

	p, err := scanPackage(r.db.conn(ctx).QueryRowContext(ctx, query, operator, packageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetStatus(otelcodes.Ok, "package not found")
			return nil, catalog.ErrPackageNotFound
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find package: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "package found")
	return p, nil
}

// FindByOperator 事業者のパッケージ一覧を取得
func (r *PackageRepository) FindByOperator(ctx context.Context, operator string) ([]*catalog.Package, error) {
	ctx, span := r.tracer.Start(ctx, "PackageRepository.FindByOperator")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operator", operator),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "packages"),
	)

	query := `
		SELECT package_id, operator, category, name, price, price_alternate_currency
		FROM packages
		WHERE operator = ?
		ORDER BY package_id
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, operator)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer rows.Close()

	var packages []*catalog.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(packages)))
	span.SetStatus(otelcodes.Ok, "packages found")
	return packages, nil
}

func scanPackage(row rowScanner) (*catalog.Package, error) {
	var (
		id, operator, category, name, price string
		alternate                           sql.NullString
	)
	if err := row.Scan(&id, &operator, &category, &name, &price, &alternate); err != nil {
		return nil, err
	}
	c, err := catalog.NewCategory(category)
	if err != nil {
		return nil, err
	}
	return catalog.NewPackage(id, operator, c, name, price, stringPtr(alternate)), nil
}
