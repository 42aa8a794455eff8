package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/ButyrinIA/socialgraph/internal/config"
	"github.com/ButyrinIA/socialgraph/internal/graphql"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var jwtSecret = []byte("your-secret-key")

type Server struct {
	cfg     *config.Config
	storage storage.Storage
	handler http.Handler
}

func New(cfg *config.Config, store storage.Storage) *Server {
	s := &Server{cfg: cfg, storage: store}

	srv := handler.NewDefaultServer(graphql.NewExecutableSchema(graphql.Config{
		Resolvers: graphql.NewResolver(store, graphql.NewProfileLoader(store)),
	}))
	srv.AddTransport(transport.Websocket{
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/", playground.Handler("GraphQL playground", "/query"))
	mux.Handle("/query", s.withRequestContext(srv))
	mux.HandleFunc("/token", s.tokenHandler)
	s.handler = mux
	return s
}

func (s *Server) Run() error {
	return http.ListenAndServe(":"+s.cfg.Server.Port, s.handler)
}

// withRequestContext кладет в контекст запроса идентификатор
// аутентифицированного пользователя и dataloader профилей на один запрос
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			if userID, err := validateJWT(strings.TrimPrefix(auth, "Bearer ")); err == nil {
				ctx = context.WithValue(ctx, graphql.UserIDKey, userID)
			}
		}
		ctx = context.WithValue(ctx, graphql.ProfileLoaderKey, graphql.NewProfileLoader(s.storage))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenHandler выдает JWT для разработки: ?userId=<локальный ключ>
func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		http.Error(w, "некорректный userId", http.StatusBadRequest)
		return
	}
	token, err := generateToken(userID)
	if err != nil {
		http.Error(w, "Ошибка генерации токена", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func generateToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": strconv.FormatInt(userID, 10),
		"jti":     uuid.New().String(),
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	return token.SignedString(jwtSecret)
}

func validateJWT(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, errors.New("пустой токен")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}
	raw, ok := claims["user_id"].(string)
	if !ok {
		return 0, errors.New("user_id claim is missing")
	}
	return strconv.ParseInt(raw, 10, 64)
}
