package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/storage"
)

const userColumnsQuery = "SELECT id, full_name, pin_code, is_staff, balance_rub, balance_usd FROM users"

func userRows(id int64, fullName, pin string, isStaff bool, rub, usd string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "pin_code", "is_staff", "balance_rub", "balance_usd"}).
		AddRow(id, fullName, pin, isStaff, rub, usd)
}

func TestGetUserByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)

	// Подготавливаем ожидаемые строки результата.
	rows := userRows(userID, "Иванов Иван", "1234", false, "1000", "0")
	query := regexp.QuoteMeta(userColumnsQuery + " WHERE id = $1")
	mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

	user, err := repo.GetUserByID(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "Иванов Иван", user.FullName)
	assert.Equal(t, "1234", user.PinCode)
	assert.False(t, user.IsStaff)
	assert.True(t, user.BalanceRub.Equal(decimal.NewFromInt(1000)))
	assert.True(t, user.BalanceUsd.Equal(decimal.Zero))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(99)

	// Эмулируем ситуацию, когда запрос возвращает 0 строк.
	rows := sqlmock.NewRows([]string{"id", "full_name", "pin_code", "is_staff", "balance_rub", "balance_usd"})
	query := regexp.QuoteMeta(userColumnsQuery + " WHERE id = $1")
	mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

	user, err := repo.GetUserByID(ctx, userID)
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, storage.ErrUserNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByCredentials_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()

	rows := userRows(1, "Иванов Иван", "1234", false, "1000", "0")
	query := regexp.QuoteMeta(userColumnsQuery + " WHERE full_name = $1 AND pin_code = $2")
	mock.ExpectQuery(query).WithArgs("Иванов Иван", "1234").WillReturnRows(rows)

	user, err := repo.GetUserByCredentials(ctx, "Иванов Иван", "1234")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByCredentials_WrongPin(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "full_name", "pin_code", "is_staff", "balance_rub", "balance_usd"})
	query := regexp.QuoteMeta(userColumnsQuery + " WHERE full_name = $1 AND pin_code = $2")
	mock.ExpectQuery(query).WithArgs("Иванов Иван", "0000").WillReturnRows(rows)

	user, err := repo.GetUserByCredentials(ctx, "Иванов Иван", "0000")
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, storage.ErrUserNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByNameFold_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()

	// Поиск без учета регистра выполняется на стороне БД через LOWER.
	rows := userRows(1, "Иванов Иван", "1234", false, "500", "10")
	query := regexp.QuoteMeta(userColumnsQuery + " WHERE LOWER(full_name) = LOWER($1)")
	mock.ExpectQuery(query).WithArgs("иванов иван").WillReturnRows(rows)

	user, err := repo.FindUserByNameFold(ctx, "иванов иван")
	assert.NoError(t, err)
	assert.Equal(t, "Иванов Иван", user.FullName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta("INSERT INTO users (full_name, pin_code, balance_rub, balance_usd) VALUES ($1, $2, $3, $4) RETURNING id")
	mock.ExpectQuery(query).
		WithArgs("Петров Петр", "4321", decimal.NewFromInt(1000), decimal.Zero).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	user := &models.User{
		FullName:   "Петров Петр",
		PinCode:    "4321",
		BalanceRub: decimal.NewFromInt(1000),
		BalanceUsd: decimal.Zero,
	}
	created, err := repo.CreateUser(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockUserByIDTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	rows := userRows(userID, "Иванов Иван", "1234", false, "1000", "0")
	query := regexp.QuoteMeta(userColumnsQuery + " WHERE id = $1 FOR UPDATE NOWAIT")
	mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

	user, err := repo.LockUserByIDTx(ctx, tx, userID)
	assert.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceTx_Rub(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)
	delta := decimal.NewFromInt(-100)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("UPDATE users SET balance_rub = balance_rub + $1 WHERE id = $2 RETURNING balance_rub")
	mock.ExpectQuery(query).WithArgs(delta, userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance_rub"}).AddRow("900"))

	balance, err := repo.AdjustBalanceTx(ctx, tx, userID, models.CurrencyRUB, delta)
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(900)))

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceTx_Usd(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)
	delta := decimal.NewFromInt(50)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// Для USD выбирается другая колонка, запрос с RUB-колонкой недопустим.
	query := regexp.QuoteMeta("UPDATE users SET balance_usd = balance_usd + $1 WHERE id = $2 RETURNING balance_usd")
	mock.ExpectQuery(query).WithArgs(delta, userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance_usd"}).AddRow("60"))

	balance, err := repo.AdjustBalanceTx(ctx, tx, userID, models.CurrencyUSD, delta)
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(60)))

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceTx_UnknownCurrency(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// Запрос в БД не уходит вовсе.
	_, err = repo.AdjustBalanceTx(ctx, tx, 1, models.Currency("EUR"), decimal.NewFromInt(10))
	assert.Error(t, err)

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceTx_UserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("UPDATE users SET balance_rub = balance_rub + $1 WHERE id = $2 RETURNING balance_rub")
	mock.ExpectQuery(query).WithArgs(decimal.NewFromInt(10), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"balance_rub"}))

	_, err = repo.AdjustBalanceTx(ctx, tx, 99, models.CurrencyRUB, decimal.NewFromInt(10))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrUserNotFound))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeTx_RubToUsd(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)
	debit := decimal.NewFromInt(950)
	credit := decimal.NewFromInt(10)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("UPDATE users SET balance_rub = balance_rub - $1, balance_usd = balance_usd + $2 WHERE id = $3 RETURNING balance_rub, balance_usd")
	mock.ExpectQuery(query).WithArgs(debit, credit, userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance_rub", "balance_usd"}).AddRow("50", "10"))

	rub, usd, err := repo.ExchangeTx(ctx, tx, userID, models.CurrencyRUB, debit, credit)
	assert.NoError(t, err)
	assert.True(t, rub.Equal(decimal.NewFromInt(50)))
	assert.True(t, usd.Equal(decimal.NewFromInt(10)))

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequest_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewRequestRepository(db)
	ctx := context.Background()
	amount := decimal.NewFromInt(500)

	query := regexp.QuoteMeta("INSERT INTO requests (user_id, type, amount, currency) VALUES ($1, $2, $3, $4) RETURNING id")
	mock.ExpectQuery(query).WithArgs(int64(1), models.RequestDeposit, amount, "RUB").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	id, err := repo.CreateRequest(ctx, 1, models.RequestDeposit, amount, models.CurrencyRUB)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingByIDTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "currency", "status", "created_at"}).
		AddRow(3, 1, models.RequestWithdraw, "500", "RUB", models.StatusPending, now)
	query := regexp.QuoteMeta("SELECT id, user_id, type, amount, currency, status, created_at FROM requests WHERE id = $1 AND status = 'pending' FOR UPDATE")
	mock.ExpectQuery(query).WithArgs(int64(3)).WillReturnRows(rows)

	req, err := repo.GetPendingByIDTx(ctx, tx, 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), req.ID)
	assert.Equal(t, models.RequestWithdraw, req.Type)
	assert.Equal(t, models.CurrencyRUB, req.Currency)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(500)))

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingByIDTx_AlreadyProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// Терминальная заявка не попадает под фильтр status = 'pending':
	// для вызывающего кода она неотличима от несуществующей.
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "currency", "status", "created_at"})
	query := regexp.QuoteMeta("SELECT id, user_id, type, amount, currency, status, created_at FROM requests WHERE id = $1 AND status = 'pending' FOR UPDATE")
	mock.ExpectQuery(query).WithArgs(int64(3)).WillReturnRows(rows)

	req, err := repo.GetPendingByIDTx(ctx, tx, 3)
	assert.Error(t, err)
	assert.Nil(t, req)
	assert.True(t, errors.Is(err, storage.ErrRequestNotFound))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewRequestRepository(db)
	ctx := context.Background()
	staffID := int64(5)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("UPDATE requests SET status = $1, processed_by = $2, processed_at = NOW() WHERE id = $3 AND status = 'pending'")
	mock.ExpectExec(query).WithArgs(models.StatusApproved, staffID, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkProcessedTx(ctx, tx, 3, models.StatusApproved, &staffID)
	assert.NoError(t, err)

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedTx_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// 0 затронутых строк: заявка уже обработана или не существует.
	query := regexp.QuoteMeta("UPDATE requests SET status = $1, processed_by = $2, processed_at = NOW() WHERE id = $3 AND status = 'pending'")
	mock.ExpectExec(query).WithArgs(models.StatusRejected, nil, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkProcessedTx(ctx, tx, 3, models.StatusRejected, nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrRequestNotFound))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPending_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewRequestRepository(db)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "full_name", "type", "amount", "currency", "status", "created_at"}).
		AddRow(2, 1, "Иванов Иван", models.RequestWithdraw, "200", "USD", models.StatusPending, now).
		AddRow(1, 2, "Петров Петр", models.RequestDeposit, "500", "RUB", models.StatusPending, now.Add(-time.Hour))
	query := `SELECT r\.id, r\.user_id, u\.full_name, r\.type, r\.amount, r\.currency, r\.status, r\.created_at`
	mock.ExpectQuery(query).WillReturnRows(rows)

	requests, err := repo.ListPending(ctx)
	assert.NoError(t, err)
	assert.Len(t, requests, 2)
	assert.Equal(t, "Иванов Иван", requests[0].FullName)
	assert.Equal(t, models.CurrencyUSD, requests[0].Currency)
	assert.Equal(t, "Петров Петр", requests[1].FullName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoundTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewGameHistoryRepository(db)
	ctx := context.Background()
	bet := decimal.NewFromInt(100)
	win := decimal.NewFromInt(200)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("INSERT INTO game_history (user_id, game_type, bet_amount, result, win_amount, details, created_at)")
	mock.ExpectExec(query).WithArgs(int64(1), models.GameRoulette, bet, models.ResultWin, win, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.CreateRoundTx(ctx, tx, 1, models.GameRoulette, bet, models.ResultWin, win, nil)
	assert.NoError(t, err)

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRoundsByUserID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewGameHistoryRepository(db)
	ctx := context.Background()
	userID := int64(1)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "game_type", "bet_amount", "result", "win_amount", "details", "created_at"}).
		AddRow(2, userID, models.GameMines, "50", models.ResultWin, "0", []byte(`{"mines_count":3,"mines":[1,5,9]}`), now).
		AddRow(1, userID, models.GameRoulette, "100", models.ResultLoss, "0", nil, now.Add(-time.Minute))
	query := `SELECT id, user_id, game_type, bet_amount, result, win_amount, details, created_at`
	mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

	rounds, err := repo.GetRoundsByUserID(ctx, userID)
	assert.NoError(t, err)
	assert.Len(t, rounds, 2)
	assert.Equal(t, models.GameMines, rounds[0].GameType)
	assert.NotNil(t, rounds[0].Details)
	assert.Equal(t, models.GameRoulette, rounds[1].GameType)
	assert.Nil(t, rounds[1].Details)

	assert.NoError(t, mock.ExpectationsWereMet())
}
