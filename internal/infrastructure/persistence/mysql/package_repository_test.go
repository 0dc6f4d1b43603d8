package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"recharge-server/internal/domain/catalog"
)

var packageRowColumns = []string{"package_id", "operator", "category", "name", "price", "price_alternate_currency"}

func TestPackageRepository_FindByOperatorAndID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &PackageRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}

	tests := []struct {
		name      string
		setupMock func()
		wantPrice string
		wantErr   error
		wantError bool
	}{
		{
			name: "正常系: パッケージを取得",
			setupMock: func() {
				mock.ExpectQuery(`FROM packages\s+WHERE operator = \? AND package_id = \?`).
					WithArgs("pubg", "uc-60").
					WillReturnRows(sqlmock.NewRows(packageRowColumns).AddRow("uc-60", "pubg", "game", "60 UC", "100", "0.99 USD"))
			},
			wantPrice: "100",
		},
		{
			name: "異常系: パッケージが存在しない",
			setupMock: func() {
				mock.ExpectQuery(`FROM packages`).
					WithArgs("pubg", "uc-60").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr:   catalog.ErrPackageNotFound,
			wantError: true,
		},
		{
			name: "異常系: 不正なカテゴリ",
			setupMock: func() {
				mock.ExpectQuery(`FROM packages`).
					WithArgs("pubg", "uc-60").
					WillReturnRows(sqlmock.NewRows(packageRowColumns).AddRow("uc-60", "pubg", "unknown", "60 UC", "100", nil))
			},
			wantError: true,
		},
		{
			name: "異常系: データベースエラー",
			setupMock: func() {
				mock.ExpectQuery(`FROM packages`).
					WithArgs("pubg", "uc-60").
					WillReturnError(errors.New("database error"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			got, err := repo.FindByOperatorAndID(context.Background(), "pubg", "uc-60")
			if tt.wantError {
				assert.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantPrice, got.Price())
				assert.Equal(t, catalog.CategoryGame, got.Category())
				require.NotNil(t, got.PriceAlternateCurrency())
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPackageRepository_FindByOperator(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &PackageRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}

	rows := sqlmock.NewRows(packageRowColumns).
		AddRow("pkg-100", "safaricom", "mobile", "100 KES", "100", nil).
		AddRow("pkg-bill", "safaricom", "mobile", "Postpaid bill", "by_invoice", nil)
	mock.ExpectQuery(`WHERE operator = \?\s+ORDER BY package_id`).
		WithArgs("safaricom").
		WillReturnRows(rows)

	got, err := repo.FindByOperator(context.Background(), "safaricom")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].HasVariablePrice())
	assert.True(t, got[1].HasVariablePrice())
	assert.NoError(t, mock.ExpectationsWereMet())
}
