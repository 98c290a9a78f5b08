package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/app/handlers"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/identity"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/service"
)

type fakeAuthService struct {
	registerUser *models.User
	registerErr  error
	loginUser    *models.User
	loginErr     error
}

var _ service.AuthServiceInterface = (*fakeAuthService)(nil)

func (f *fakeAuthService) Register(ctx context.Context, fullName, pinCode string) (*models.User, error) {
	return f.registerUser, f.registerErr
}

func (f *fakeAuthService) Login(ctx context.Context, fullName, pinCode string) (*models.User, error) {
	return f.loginUser, f.loginErr
}

type fakeGameService struct {
	rouletteResult *service.RouletteResult
	rouletteErr    error
	minesResult    *service.MinesResult
	minesErr       error
	rounds         []*models.GameRound
}

var _ service.GameService = (*fakeGameService)(nil)

func (f *fakeGameService) PlayRoulette(ctx context.Context, userID int64, bet decimal.Decimal) (*service.RouletteResult, error) {
	return f.rouletteResult, f.rouletteErr
}

func (f *fakeGameService) PlayMines(ctx context.Context, userID int64, bet decimal.Decimal, minesCount, openedCells int) (*service.MinesResult, error) {
	return f.minesResult, f.minesErr
}

func (f *fakeGameService) History(ctx context.Context, userID int64) ([]*models.GameRound, error) {
	return f.rounds, nil
}

type fakeStaffService struct {
	pending    []*models.FundingRequest
	listErr    error
	processErr error
	balance    decimal.Decimal
	manageErr  error
}

var _ service.StaffService = (*fakeStaffService)(nil)

func (f *fakeStaffService) ListPending(ctx context.Context, p models.Principal) ([]*models.FundingRequest, error) {
	return f.pending, f.listErr
}

func (f *fakeStaffService) ProcessRequest(ctx context.Context, p models.Principal, requestID int64, decision string) error {
	return f.processErr
}

func (f *fakeStaffService) ManageBalance(ctx context.Context, p models.Principal, fullName string, amount decimal.Decimal, operation string, currency models.Currency) (decimal.Decimal, error) {
	return f.balance, f.manageErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// serveAuthed прогоняет запрос через identity-middleware с заданным X-User-Id.
func serveAuthed(handler http.HandlerFunc, method, path string, userID string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderUserID, userID)
	rec := httptest.NewRecorder()
	identity.Middleware()(handler).ServeHTTP(rec, req)
	return rec
}

func TestRegisterHandler_Success(t *testing.T) {
	authSvc := &fakeAuthService{
		registerUser: &models.User{
			ID:         1,
			FullName:   "Иванов Иван",
			BalanceRub: decimal.NewFromInt(1000),
			BalanceUsd: decimal.Zero,
		},
	}
	handler := handlers.RegisterHandler(testLogger(), authSvc)

	body := []byte(`{"full_name": "Иванов Иван", "pin_code": "1234"}`)
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.AuthResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.User.ID)
	assert.Equal(t, float64(1000), resp.User.BalanceRub)
}

func TestRegisterHandler_ShortPin(t *testing.T) {
	handler := handlers.RegisterHandler(testLogger(), &fakeAuthService{})

	// PIN короче четырех знаков отклоняется до обращения к сервису.
	body := []byte(`{"full_name": "Иванов Иван", "pin_code": "12"}`)
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "PIN")
}

func TestRegisterHandler_NameTaken(t *testing.T) {
	handler := handlers.RegisterHandler(testLogger(), &fakeAuthService{registerErr: service.ErrNameTaken})

	body := []byte(`{"full_name": "Иванов Иван", "pin_code": "1234"}`)
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "уже существует")
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	handler := handlers.LoginHandler(testLogger(), &fakeAuthService{loginErr: service.ErrInvalidCredentials})

	body := []byte(`{"full_name": "Иванов Иван", "pin_code": "0000"}`)
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouletteHandler_WinMessage(t *testing.T) {
	gameSvc := &fakeGameService{
		rouletteResult: &service.RouletteResult{
			Result:    models.ResultWin,
			WinAmount: decimal.NewFromInt(200),
			Balance:   decimal.NewFromInt(1100),
		},
	}
	handler := handlers.RouletteHandler(testLogger(), gameSvc)

	rec := serveAuthed(handler, "POST", "/api/games/roulette", "1", []byte(`{"bet_amount": 100}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.RouletteResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "win", resp.Result)
	assert.Equal(t, "Вы выиграли!", resp.Message)
	assert.Equal(t, float64(1100), resp.Balance)
}

func TestRouletteHandler_UnknownUserGives400(t *testing.T) {
	// Игровые обработчики отвечают 400, а не 404, на несуществующего пользователя.
	handler := handlers.RouletteHandler(testLogger(), &fakeGameService{rouletteErr: service.ErrUserNotFound})

	rec := serveAuthed(handler, "POST", "/api/games/roulette", "99", []byte(`{"bet_amount": 100}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Пользователь не найден")
}

func TestMinesHandler_BadMinesCount(t *testing.T) {
	handler := handlers.MinesHandler(testLogger(), &fakeGameService{})

	rec := serveAuthed(handler, "POST", "/api/games/mines", "1", []byte(`{"bet_amount": 100, "mines_count": 25}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessRequestHandler_Forbidden(t *testing.T) {
	handler := handlers.ProcessRequestHandler(testLogger(), &fakeStaffService{processErr: service.ErrForbidden})

	rec := serveAuthed(handler, "POST", "/api/staff/requests/process", "1", []byte(`{"request_id": 3, "decision": "approved"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Доступ запрещен")
}

func TestProcessRequestHandler_Approved(t *testing.T) {
	handler := handlers.ProcessRequestHandler(testLogger(), &fakeStaffService{})

	rec := serveAuthed(handler, "POST", "/api/staff/requests/process", "5", []byte(`{"request_id": 3, "decision": "approved"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Заявка одобрена")
}

func TestProcessRequestHandler_InvalidDecision(t *testing.T) {
	handler := handlers.ProcessRequestHandler(testLogger(), &fakeStaffService{})

	rec := serveAuthed(handler, "POST", "/api/staff/requests/process", "5", []byte(`{"request_id": 3, "decision": "maybe"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManageBalanceHandler_Success(t *testing.T) {
	handler := handlers.ManageBalanceHandler(testLogger(), &fakeStaffService{balance: decimal.NewFromInt(500)})

	body := []byte(`{"full_name": "Иванов Иван", "amount": 400, "operation": "add", "currency": "RUB"}`)
	rec := serveAuthed(handler, "POST", "/api/staff/balance", "5", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool    `json:"success"`
		Balance float64 `json:"balance"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, float64(500), resp.Balance)
}

func TestManageBalanceHandler_UnknownCurrency(t *testing.T) {
	handler := handlers.ManageBalanceHandler(testLogger(), &fakeStaffService{})

	body := []byte(`{"full_name": "Иванов Иван", "amount": 400, "operation": "add", "currency": "EUR"}`)
	rec := serveAuthed(handler, "POST", "/api/staff/balance", "5", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
