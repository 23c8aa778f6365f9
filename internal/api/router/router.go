package router

import (
	"net/http"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "bookshop/docs" // Registro do spec Swagger gerado
	"bookshop/internal/api/book"
	"bookshop/internal/api/user"
	"bookshop/internal/domain"
	"bookshop/internal/pkg/cache"
	"bookshop/internal/pkg/middleware"
)

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(
	bookHandler *book.Handler,
	userHandler *user.Handler,
	tokenSvc middleware.TokenService,
	cacheClient cache.Client,
	rateLimit int,
	ratePeriod time.Duration,
) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	// Em projetos maiores, pode-se usar um mux de terceiros (e.g., gorilla/mux, chi)
	mux := http.NewServeMux()

	authRequired := middleware.NewAuthMiddleware(tokenSvc)
	adminOnly := middleware.PermissionMiddleware(domain.RoleAdmin)

	// --- 1. Rotas de Health Check e Documentação ---
	mux.HandleFunc("/ping", PingHandler)
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// --- 2. Rotas de Autenticação (v1) ---
	mux.HandleFunc("/v1/register", userHandler.RegisterUserHandler)
	mux.HandleFunc("/v1/login", userHandler.LoginUserHandler)

	// --- 3. Rotas do Módulo de Livros (v1) ---

	// GET /v1/books (listagem pública) | POST /v1/books (publicar, autenticado)
	mux.HandleFunc("/v1/books", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			bookHandler.ListBooksHandler(w, r)
		case http.MethodPost:
			authRequired(bookHandler.CreateBookHandler)(w, r)
		default:
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		}
	})

	// GET /v1/books/{id} (público) | PUT/DELETE /v1/books/{id} (dono)
	// POST /v1/books/{id}/buy (comprador autenticado)
	mux.HandleFunc("/v1/books/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/buy") {
			if r.Method != http.MethodPost {
				http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
				return
			}
			authRequired(bookHandler.BuyBookHandler)(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			bookHandler.GetBookByIDHandler(w, r)
		case http.MethodPut:
			authRequired(bookHandler.UpdateBookHandler)(w, r)
		case http.MethodDelete:
			authRequired(bookHandler.DeleteBookHandler)(w, r)
		default:
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		}
	})

	// GET /v1/my-books (todos os anúncios do usuário, incluindo vendidos)
	mux.HandleFunc("/v1/my-books", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
			return
		}
		authRequired(bookHandler.GetMyBooksHandler)(w, r)
	})

	// --- 4. Rotas Administrativas (v1) ---

	// POST /v1/admin/price-suggestions (disparo manual da varredura semanal)
	mux.HandleFunc("/v1/admin/price-suggestions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
			return
		}
		authRequired(adminOnly(bookHandler.PriceSuggestionsHandler))(w, r)
	})

	// --- 5. Middlewares Globais ---
	return middleware.RateLimiter(cacheClient, rateLimit, ratePeriod)(mux)
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
