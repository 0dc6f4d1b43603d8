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

	"recharge-server/internal/domain/balance"
)

func TestBalanceRepository_Ensure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &BalanceRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}

	mock.ExpectExec(`INSERT IGNORE INTO balances`).
		WithArgs("user123").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Ensure(context.Background(), "user123"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_FindForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &BalanceRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}

	tests := []struct {
		name      string
		userID    string
		setupMock func()
		want      *balance.Balance
		wantErr   error
		wantError bool
	}{
		{
			name:   "正常系: 残高を取得",
			userID: "user123",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"user_id", "amount", "held", "version"}).
					AddRow("user123", int64(1000), int64(600), 3)
				mock.ExpectQuery(`SELECT user_id, amount, held, version FROM balances WHERE user_id = \? FOR UPDATE`).
					WithArgs("user123").
					WillReturnRows(rows)
			},
			want: balance.MustNewBalance("user123", 1000, 600, 3),
		},
		{
			name:   "異常系: 残高が存在しない",
			userID: "ghost",
			setupMock: func() {
				mock.ExpectQuery(`FROM balances WHERE user_id = \? FOR UPDATE`).
					WithArgs("ghost").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr:   balance.ErrBalanceNotFound,
			wantError: true,
		},
		{
			name:   "異常系: データベースエラー",
			userID: "user123",
			setupMock: func() {
				mock.ExpectQuery(`FROM balances WHERE user_id = \? FOR UPDATE`).
					WithArgs("user123").
					WillReturnError(errors.New("database error"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			got, err := repo.FindForUpdate(context.Background(), tt.userID)
			if tt.wantError {
				assert.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBalanceRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &BalanceRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}

	tests := []struct {
		name      string
		rows      int64
		execErr   error
		wantError bool
	}{
		{name: "正常系: 残高を保存", rows: 1},
		{name: "異常系: 古いバージョン", rows: 0, wantError: true},
		{name: "異常系: データベースエラー", execErr: errors.New("database error"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := balance.MustNewBalance("user123", 400, 0, 4)

			exp := mock.ExpectExec(`UPDATE balances`).
				WithArgs(int64(400), int64(0), 4, "user123", 4)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.rows))
			}

			err := repo.Save(context.Background(), b)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBalanceRepository_UsesContextTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mysqlDB := &DB{DB: db}
	repo := &BalanceRepository{db: mysqlDB, tracer: otel.Tracer("test")}
	tm := NewTransactionManager(mysqlDB)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT IGNORE INTO balances`).WithArgs("user123").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("user123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "amount", "held", "version"}).AddRow("user123", int64(0), int64(0), 0))
	mock.ExpectCommit()

	err = tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.Ensure(ctx, "user123"); err != nil {
			return err
		}
		_, err := repo.FindForUpdate(ctx, "user123")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
