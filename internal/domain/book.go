package domain

import (
	"context"
	"time"
)

// BookStatus representa o estado do ciclo de vida de um livro no marketplace.
// Um livro nasce PUBLISHED (anúncio ativo) e transiciona para SOLD exatamente
// uma vez, através da operação de compra.
type BookStatus string

const (
	StatusPublished BookStatus = "PUBLISHED"
	StatusSold      BookStatus = "SOLD"
)

// Limites de validação dos campos do livro.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxAuthorLength      = 100
)

// Book representa um anúncio de livro no marketplace (a Entidade principal).
// Invariante: SoldAt != nil se e somente se Status == SOLD.
type Book struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Author      string     `json:"author"`
	Status      BookStatus `json:"status"`
	OwnerID     string     `json:"owner_id"` // Referência ao User dono do anúncio (lookup, nunca embutido)
	SoldAt      *time.Time `json:"sold_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BookCreate é o payload de entrada para publicar um novo livro.
type BookCreate struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Author      string  `json:"author"`
	OwnerID     string  `json:"-"` // Vem do token JWT, nunca do corpo da requisição
}

// BookUpdate é o patch parcial aplicado por um dono sobre o próprio anúncio.
// Campos nil são deixados inalterados. Propositalmente NÃO existem campos
// Status/SoldAt aqui: a transição de estado só acontece pela compra.
type BookUpdate struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Author      *string  `json:"author"`
}

// BookFilter define os parâmetros de busca e paginação da listagem pública.
type BookFilter struct {
	Page   int    // 1-indexado
	Limit  int    // máximo 100
	Author string // filtro por igualdade exata (opcional)
	Title  string // filtro por igualdade exata (opcional)
}

// --- Interfaces de Contrato ---

// BookService é a interface que a camada de Serviço (regras de negócio do
// ciclo de vida do livro) implementa para a camada de API.
type BookService interface {
	CreateBook(ctx context.Context, payload BookCreate) (Book, error)
	GetBookByID(ctx context.Context, id string) (Book, error)
	GetAllBooks(ctx context.Context, filter BookFilter) ([]Book, error)
	GetMyBooks(ctx context.Context, ownerID string) ([]Book, error)
	UpdateBook(ctx context.Context, id string, requesterID string, update BookUpdate) (Book, error)
	DeleteBook(ctx context.Context, id string, requesterID string) (Book, error)
	BuyBook(ctx context.Context, id string, buyerID string) (Book, error)
	SuggestPriceReductions(ctx context.Context, daysOld int) (PriceSuggestionResult, error)
}

// BookRepository é o contrato de persistência da entidade Book.
type BookRepository interface {
	Save(ctx context.Context, book Book) (Book, error)
	FindByID(ctx context.Context, id string) (Book, error)
	FindByOwner(ctx context.Context, ownerID string) ([]Book, error)
	FindPaginatedFiltered(ctx context.Context, filter BookFilter) ([]Book, error)
	FindStale(ctx context.Context, daysOld int) ([]Book, error)
	Update(ctx context.Context, book Book) (Book, error)
	// MarkSold executa a transição PUBLISHED -> SOLD de forma atômica e
	// condicional no banco. Retorna false se nenhuma linha foi alterada
	// (livro já vendido por uma requisição concorrente, ou removido).
	MarkSold(ctx context.Context, id string, soldAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

// PriceSuggestionResult resume uma varredura de anúncios parados
// (livros PUBLISHED há mais de N dias) e as notificações resultantes.
type PriceSuggestionResult struct {
	ProcessedBooks int `json:"processed_books"`
	EmailsSent     int `json:"emails_sent"`
	EmailsFailed   int `json:"emails_failed"`
}
