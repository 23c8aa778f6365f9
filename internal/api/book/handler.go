package book

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"bookshop/internal/domain"
	apperror "bookshop/internal/errors"
	"bookshop/internal/pkg/logger"
	"bookshop/internal/pkg/middleware"
)

// CreateBookRequest representa o payload de entrada para publicar um livro.
type CreateBookRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Author      string  `json:"author"`
}

// BookListResponse é o envelope de resposta das listagens.
type BookListResponse struct {
	Count int           `json:"count"`
	Items []domain.Book `json:"items"`
}

// Handler agrupa todos os métodos de Handler de livros.
type Handler struct {
	Service domain.BookService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc domain.BookService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse padroniza o tratamento de erros e respostas HTTP.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, data interface{}, err error, successStatus int) {
	w.Header().Set("Content-Type", "application/json")

	if err == nil {
		w.WriteHeader(successStatus)
		if data != nil {
			json.NewEncoder(w).Encode(data)
		}
		return
	}

	// Mapeamento de Erros de Negócio para Status HTTP
	status, category, message := apperror.MapToHTTPStatus(err)

	// Log apenas de erros graves
	if status >= 500 {
		h.Logger.Error("Erro interno no serviço de livros.", err)
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.ErrorResponse{
		Code:     status,
		Category: category,
		Message:  message,
	})
}

// requesterID extrai o ID do usuário autenticado do contexto da requisição.
func (h *Handler) requesterID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetUserClaimsFromContext(r.Context())
	if !ok {
		h.handleServiceResponse(w, nil, apperror.NewUnauthorizedError("Autorização necessária."), 0)
		return "", false
	}
	return claims.UserID, true
}

// bookIDFromPath extrai o ID do livro de um caminho /v1/books/{id}[/buy].
func bookIDFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/v1/books/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

// CreateBookHandler lida com a requisição POST /v1/books.
// @Summary Publica um novo livro
// @Description Cria um anúncio de livro com status PUBLISHED, pertencente ao usuário autenticado.
// @Tags books
// @Accept json
// @Produce json
// @Param book body CreateBookRequest true "Dados do livro (título, descrição, preço, autor)"
// @Success 201 {object} domain.Book "Livro publicado com sucesso"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido (campos ausentes, preço negativo)"
// @Failure 401 {object} domain.ErrorResponse "Token ausente ou inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security BearerAuth
// @Router /books [post]
func (h *Handler) CreateBookHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requesterID(w, r)
	if !ok {
		return
	}

	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, nil, apperror.NewValidationError("Payload JSON inválido."), 0)
		return
	}

	payload := domain.BookCreate{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Author:      req.Author,
		OwnerID:     userID,
	}

	created, err := h.Service.CreateBook(r.Context(), payload)
	h.handleServiceResponse(w, created, err, http.StatusCreated)
}

// ListBooksHandler lida com a requisição GET /v1/books.
// @Summary Lista livros publicados
// @Description Lista paginada de livros PUBLISHED, com filtros opcionais de igualdade exata por autor e título.
// @Tags books
// @Produce json
// @Param page query int false "Página (1-indexada, padrão 1)"
// @Param limit query int false "Itens por página (padrão 10, máximo 100)"
// @Param author query string false "Filtro exato por autor"
// @Param title query string false "Filtro exato por título"
// @Success 200 {object} BookListResponse "Lista de livros"
// @Failure 400 {object} domain.ErrorResponse "Paginação inválida"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /books [get]
func (h *Handler) ListBooksHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookFilter(r)
	if err != nil {
		h.handleServiceResponse(w, nil, err, 0)
		return
	}

	books, err := h.Service.GetAllBooks(r.Context(), filter)
	if err != nil {
		h.handleServiceResponse(w, nil, err, 0)
		return
	}

	h.handleServiceResponse(w, BookListResponse{Count: len(books), Items: books}, nil, http.StatusOK)
}

// parseBookFilter monta o BookFilter a partir da query string.
// Parâmetros ausentes recebem os padrões; valores malformados são rejeitados.
func parseBookFilter(r *http.Request) (domain.BookFilter, error) {
	filter := domain.BookFilter{
		Page:   1,
		Limit:  10,
		Author: r.URL.Query().Get("author"),
		Title:  r.URL.Query().Get("title"),
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return domain.BookFilter{}, apperror.NewValidationError("page deve ser um número inteiro.")
		}
		filter.Page = page
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return domain.BookFilter{}, apperror.NewValidationError("limit deve ser um número inteiro.")
		}
		filter.Limit = limit
	}

	return filter, nil
}

// GetBookByIDHandler lida com a requisição GET /v1/books/{id}.
// @Summary Busca um livro publicado pelo ID
// @Description Retorna o livro apenas se status for PUBLISHED; um livro vendido resulta em 410.
// @Tags books
// @Produce json
// @Param id path string true "ID do livro (UUID)"
// @Success 200 {object} domain.Book "Livro encontrado"
// @Failure 400 {object} domain.ErrorResponse "ID malformado"
// @Failure 404 {object} domain.ErrorResponse "Livro inexistente"
// @Failure 410 {object} domain.ErrorResponse "Livro já vendido (indisponível)"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /books/{id} [get]
func (h *Handler) GetBookByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := bookIDFromPath(r.URL.Path)
	book, err := h.Service.GetBookByID(r.Context(), id)
	h.handleServiceResponse(w, book, err, http.StatusOK)
}

// GetMyBooksHandler lida com a requisição GET /v1/my-books.
// @Summary Lista os livros do usuário autenticado
// @Description Retorna todos os anúncios do usuário, incluindo os já vendidos.
// @Tags books
// @Produce json
// @Success 200 {object} BookListResponse "Lista de livros do usuário"
// @Failure 401 {object} domain.ErrorResponse "Token ausente ou inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security BearerAuth
// @Router /my-books [get]
func (h *Handler) GetMyBooksHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requesterID(w, r)
	if !ok {
		return
	}

	books, err := h.Service.GetMyBooks(r.Context(), userID)
	if err != nil {
		h.handleServiceResponse(w, nil, err, 0)
		return
	}

	h.handleServiceResponse(w, BookListResponse{Count: len(books), Items: books}, nil, http.StatusOK)
}

// UpdateBookHandler lida com a requisição PUT /v1/books/{id}.
// @Summary Atualiza um anúncio do próprio dono
// @Description Aplica um patch parcial (título, descrição, preço, autor); campos omitidos ficam inalterados.
// @Tags books
// @Accept json
// @Produce json
// @Param id path string true "ID do livro (UUID)"
// @Param update body domain.BookUpdate true "Campos a atualizar"
// @Success 200 {object} domain.Book "Livro atualizado"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido (preço negativo, campos vazios)"
// @Failure 401 {object} domain.ErrorResponse "Token ausente ou inválido"
// @Failure 403 {object} domain.ErrorResponse "Usuário não é o dono do anúncio"
// @Failure 404 {object} domain.ErrorResponse "Livro inexistente"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security BearerAuth
// @Router /books/{id} [put]
func (h *Handler) UpdateBookHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requesterID(w, r)
	if !ok {
		return
	}

	var update domain.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.handleServiceResponse(w, nil, apperror.NewValidationError("Payload JSON inválido."), 0)
		return
	}

	id := bookIDFromPath(r.URL.Path)
	updated, err := h.Service.UpdateBook(r.Context(), id, userID, update)
	h.handleServiceResponse(w, updated, err, http.StatusOK)
}

// DeleteBookHandler lida com a requisição DELETE /v1/books/{id}.
// @Summary Remove um anúncio do próprio dono
// @Description Remove o livro e retorna o registro removido. Uma segunda remoção resulta em 404.
// @Tags books
// @Produce json
// @Param id path string true "ID do livro (UUID)"
// @Success 200 {object} domain.Book "Livro removido"
// @Failure 401 {object} domain.ErrorResponse "Token ausente ou inválido"
// @Failure 403 {object} domain.ErrorResponse "Usuário não é o dono do anúncio"
// @Failure 404 {object} domain.ErrorResponse "Livro inexistente"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security BearerAuth
// @Router /books/{id} [delete]
func (h *Handler) DeleteBookHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requesterID(w, r)
	if !ok {
		return
	}

	id := bookIDFromPath(r.URL.Path)
	deleted, err := h.Service.DeleteBook(r.Context(), id, userID)
	h.handleServiceResponse(w, deleted, err, http.StatusOK)
}

// BuyBookHandler lida com a requisição POST /v1/books/{id}/buy.
// @Summary Compra um livro publicado
// @Description Transiciona o livro de PUBLISHED para SOLD. O vendedor é notificado por e-mail (melhor esforço).
// @Tags books
// @Produce json
// @Param id path string true "ID do livro (UUID)"
// @Success 200 {object} domain.Book "Livro comprado"
// @Failure 400 {object} domain.ErrorResponse "Regra de negócio violada (próprio livro, já vendido)"
// @Failure 401 {object} domain.ErrorResponse "Token ausente ou inválido"
// @Failure 404 {object} domain.ErrorResponse "Livro inexistente"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security BearerAuth
// @Router /books/{id}/buy [post]
func (h *Handler) BuyBookHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requesterID(w, r)
	if !ok {
		return
	}

	id := bookIDFromPath(r.URL.Path)
	bought, err := h.Service.BuyBook(r.Context(), id, userID)
	h.handleServiceResponse(w, bought, err, http.StatusOK)
}

// PriceSuggestionsHandler lida com a requisição POST /v1/admin/price-suggestions.
// Dispara manualmente a varredura que o cron executa semanalmente.
// @Summary Dispara a varredura de sugestão de preços
// @Description Busca livros publicados há mais de N dias e envia sugestões de redução de preço aos donos.
// @Tags admin
// @Produce json
// @Param days query int false "Idade mínima do anúncio em dias (padrão 7)"
// @Success 200 {object} domain.PriceSuggestionResult "Resumo da varredura"
// @Failure 401 {object} domain.ErrorResponse "Token ausente ou inválido"
// @Failure 403 {object} domain.ErrorResponse "Usuário não é administrador"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security BearerAuth
// @Router /admin/price-suggestions [post]
func (h *Handler) PriceSuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	days := 7
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil {
			h.handleServiceResponse(w, nil, apperror.NewValidationError("days deve ser um número inteiro."), 0)
			return
		}
		days = parsed
	}

	result, err := h.Service.SuggestPriceReductions(r.Context(), days)
	h.handleServiceResponse(w, result, err, http.StatusOK)
}
