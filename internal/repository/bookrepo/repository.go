package bookrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bookshop/internal/domain"
	apperror "bookshop/internal/errors"
	"bookshop/internal/pkg/cache"
	"bookshop/internal/pkg/logger"
)

// Chave de cache para livros individuais (estratégia Cache-Aside).
const bookCacheKey = "book:%s"

// TTL do cache de leitura de livros.
const bookCacheTTL = 5 * time.Minute

// BookRepository implementa a interface domain.BookRepository sobre
// PostgreSQL, com cache de leitura em Redis.
type BookRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewBookRepository cria e retorna uma nova instância do Repositório de Livros.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewBookRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, log logger.Logger) *BookRepository {
	return &BookRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    log,
	}
}

// rowScanner abstrai *sql.Row e *sql.Rows para o mapeamento de linhas.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanBook mapeia uma linha do resultado SQL para a entidade domain.Book.
func scanBook(row rowScanner) (domain.Book, error) {
	var b domain.Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Description,
		&b.Price,
		&b.Author,
		&b.Status,
		&b.OwnerID,
		&b.SoldAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

const bookColumns = `id, title, description, price, author, status, owner_id, sold_at, created_at, updated_at`

// Save persiste um novo Livro no banco de dados.
func (r *BookRepository) Save(ctx context.Context, book domain.Book) (domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const insertSQL = `INSERT INTO books (id, title, description, price, author, status, owner_id, sold_at, created_at, updated_at)
                       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.DB.ExecContext(ctxTimeout, insertSQL,
		book.ID,
		book.Title,
		book.Description,
		book.Price,
		book.Author,
		book.Status,
		book.OwnerID,
		book.SoldAt,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir livro no DB.", err)
		return domain.Book{}, apperror.NewDBError("Falha ao inserir livro", err)
	}

	r.logger.Info("Livro salvo no repositório.", map[string]interface{}{"book_id": book.ID, "owner_id": book.OwnerID})
	return book, nil
}

// FindByID busca um livro pelo ID, utilizando a estratégia Cache-Aside.
func (r *BookRepository) FindByID(ctx context.Context, id string) (domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(bookCacheKey, id)
	var book domain.Book

	// --- 1. Estratégia Cache-Aside (READ) ---
	cachedData, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		// Cache HIT
		if json.Unmarshal([]byte(cachedData), &book) == nil {
			return book, nil
		}
		// Se a desserialização falhar, segue para o DB
	} else if err != cache.ErrCacheMiss {
		// Erro real de cache (conexão perdida): logamos e seguimos para o DB.
		r.logger.Warn("Falha ao ler do cache Redis, consultando o DB.", map[string]interface{}{"key": key, "error": err.Error()})
	}

	// --- 2. Busca no Banco de Dados (PostgreSQL) ---
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	book, err = scanBook(r.DB.QueryRowContext(ctxTimeout, query, id))
	if err == sql.ErrNoRows {
		return domain.Book{}, apperror.NewNotFoundError(fmt.Sprintf("Livro com ID %s não existe na base de dados.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar livro no DB.", err)
		return domain.Book{}, apperror.NewDBError("Falha ao buscar livro", err)
	}

	// --- 3. Estratégia Cache-Aside (WRITE) ---
	if bookJSON, marshalErr := json.Marshal(book); marshalErr == nil {
		r.Cache.Set(ctxTimeout, key, bookJSON, bookCacheTTL)
	}

	return book, nil
}

// FindByOwner busca todos os livros de um dono (PUBLISHED e SOLD).
func (r *BookRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + bookColumns + ` FROM books WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctxTimeout, query, ownerID)
	if err != nil {
		r.logger.Error("Falha ao buscar livros do dono no DB.", err)
		return nil, apperror.NewDBError("Falha ao buscar livros do dono", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

// FindPaginatedFiltered busca livros PUBLISHED com paginação e filtros de
// igualdade exata por autor e/ou título.
func (r *BookRepository) FindPaginatedFiltered(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	// Monta a query dinamicamente conforme os filtros presentes.
	query := `SELECT ` + bookColumns + ` FROM books WHERE status = $1`
	args := []interface{}{domain.StatusPublished}

	if filter.Author != "" {
		args = append(args, filter.Author)
		query += fmt.Sprintf(" AND author = $%d", len(args))
	}
	if filter.Title != "" {
		args = append(args, filter.Title)
		query += fmt.Sprintf(" AND title = $%d", len(args))
	}

	offset := (filter.Page - 1) * filter.Limit
	args = append(args, filter.Limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		r.logger.Error("Falha ao listar livros no DB.", err)
		return nil, apperror.NewDBError("Falha ao listar livros", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

// FindStale busca livros PUBLISHED há mais de daysOld dias (anúncios parados,
// candidatos à sugestão de redução de preço).
func (r *BookRepository) FindStale(ctx context.Context, daysOld int) ([]domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + bookColumns + ` FROM books
              WHERE status = $1 AND created_at <= NOW() - ($2 * INTERVAL '1 day')
              ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctxTimeout, query, domain.StatusPublished, daysOld)
	if err != nil {
		r.logger.Error("Falha ao buscar anúncios parados no DB.", err)
		return nil, apperror.NewDBError("Falha ao buscar anúncios parados", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

// Update persiste os campos descritivos de um livro existente.
// Status e sold_at NÃO são tocados por este caminho: a transição de estado
// acontece exclusivamente via MarkSold.
func (r *BookRepository) Update(ctx context.Context, book domain.Book) (domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const updateSQL = `UPDATE books
                       SET title = $1, description = $2, price = $3, author = $4, updated_at = $5
                       WHERE id = $6`

	book.UpdatedAt = time.Now().UTC()

	result, err := r.DB.ExecContext(ctxTimeout, updateSQL,
		book.Title,
		book.Description,
		book.Price,
		book.Author,
		book.UpdatedAt,
		book.ID,
	)
	if err != nil {
		r.logger.Error("Falha ao atualizar livro no DB.", err)
		return domain.Book{}, apperror.NewDBError("Falha ao atualizar livro", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Book{}, apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if affected == 0 {
		return domain.Book{}, apperror.NewNotFoundError(fmt.Sprintf("Livro com ID %s não existe na base de dados.", book.ID))
	}

	r.invalidate(ctxTimeout, book.ID)
	return book, nil
}

// MarkSold executa a transição PUBLISHED -> SOLD de forma atômica e
// condicional: o UPDATE só tem efeito se o livro ainda estiver PUBLISHED.
// Retorna false quando nenhuma linha foi alterada (vendido por uma requisição
// concorrente, ou removido entre a leitura e a escrita).
func (r *BookRepository) MarkSold(ctx context.Context, id string, soldAt time.Time) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const sellSQL = `UPDATE books
                     SET status = $1, sold_at = $2, updated_at = $2
                     WHERE id = $3 AND status = $4`

	result, err := r.DB.ExecContext(ctxTimeout, sellSQL, domain.StatusSold, soldAt, id, domain.StatusPublished)
	if err != nil {
		r.logger.Error("Falha ao marcar livro como vendido no DB.", err)
		return false, apperror.NewDBError("Falha ao marcar livro como vendido", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}

	if affected == 0 {
		r.logger.Warn("Transição de venda sem efeito (livro já vendido ou removido).", map[string]interface{}{"book_id": id})
		return false, nil
	}

	r.invalidate(ctxTimeout, id)
	r.logger.Info("Livro marcado como vendido.", map[string]interface{}{"book_id": id})
	return true, nil
}

// Delete remove um livro do banco de dados.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctxTimeout, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Falha ao deletar livro no DB.", err)
		return apperror.NewDBError("Falha ao deletar livro", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if affected == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("Livro com ID %s não existe na base de dados.", id))
	}

	r.invalidate(ctxTimeout, id)
	r.logger.Info("Livro removido do repositório.", map[string]interface{}{"book_id": id})
	return nil
}

// invalidate remove a entrada de cache de um livro após escrita.
func (r *BookRepository) invalidate(ctx context.Context, id string) {
	key := fmt.Sprintf(bookCacheKey, id)
	if err := r.Cache.Delete(ctx, key); err != nil {
		r.logger.Warn("Falha ao invalidar cache do livro.", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// collectBooks itera sobre as linhas do resultado e as mapeia para entidades.
func collectBooks(rows *sql.Rows) ([]domain.Book, error) {
	books := []domain.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, apperror.NewDBError("Falha ao mapear livro", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar resultado", err)
	}
	return books, nil
}
