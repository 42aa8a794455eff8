package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/config"
	"github.com/ButyrinIA/socialgraph/internal/graphql"
	"github.com/ButyrinIA/socialgraph/internal/storage/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = "8080"
	return cfg
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	store := memory.New()
	server := New(cfg, store)

	assert.NotNil(t, server)
	assert.Equal(t, cfg, server.cfg)
	assert.NotNil(t, server.handler)
}

func TestGenerateToken(t *testing.T) {
	token, err := generateToken(42)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte("your-secret-key"), nil
	})
	assert.NoError(t, err)
	assert.True(t, parsedToken.Valid)

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, "42", claims["user_id"])
	assert.NotEmpty(t, claims["jti"], "Каждый токен несет уникальный jti")
}

func TestValidateJWT(t *testing.T) {
	token, err := generateToken(42)
	assert.NoError(t, err)

	userID, err := validateJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestValidateJWT_Invalid(t *testing.T) {
	_, err := validateJWT("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "пустой токен")

	_, err = validateJWT("invalid-token")
	assert.Error(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "42",
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	wrongKeyToken, _ := token.SignedString([]byte("wrong-key"))
	_, err = validateJWT(wrongKeyToken)
	assert.Error(t, err)

	// Токен без user_id
	token = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour * 24).Unix(),
	})
	noClaim, _ := token.SignedString([]byte("your-secret-key"))
	_, err = validateJWT(noClaim)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "user_id claim is missing")
}

func TestTokenHandler(t *testing.T) {
	server := New(testConfig(), memory.New())

	req, _ := http.NewRequest("GET", "/token?userId=7", nil)
	rr := httptest.NewRecorder()
	server.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	err := json.NewDecoder(rr.Body).Decode(&response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response["token"])

	userID, err := validateJWT(response["token"])
	assert.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestTokenHandler_BadUserID(t *testing.T) {
	server := New(testConfig(), memory.New())

	req, _ := http.NewRequest("GET", "/token?userId=abc", nil)
	rr := httptest.NewRecorder()
	server.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWithRequestContext(t *testing.T) {
	server := New(testConfig(), memory.New())

	var gotUserID interface{}
	var gotLoader interface{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = r.Context().Value(graphql.UserIDKey)
		gotLoader = r.Context().Value(graphql.ProfileLoaderKey)
	})
	wrapped := server.withRequestContext(inner)

	token, err := generateToken(7)
	assert.NoError(t, err)

	req, _ := http.NewRequest("POST", "/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(7), gotUserID, "userID из токена должен попасть в контекст")
	assert.NotNil(t, gotLoader, "Загрузчик профилей создается на каждый запрос")

	// Без заголовка авторизации - анонимный запрос
	gotUserID = nil
	req, _ = http.NewRequest("POST", "/query", nil)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, gotUserID)

	// Протухший токен игнорируется
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": strconv.FormatInt(7, 10),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	expiredToken, _ := expired.SignedString([]byte("your-secret-key"))
	gotUserID = nil
	req, _ = http.NewRequest("POST", "/query", nil)
	req.Header.Set("Authorization", "Bearer "+expiredToken)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, gotUserID)
}
